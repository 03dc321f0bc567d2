package config

const (
	defaultLogDir     = "~/.local/share/coffeeman/logs"
	defaultDataDir    = "~/.local/share/coffeeman"
	defaultRecipesDir = "~/.config/coffeeman/recipes"
	defaultMediaDir   = "~/media/clips"

	defaultSerialPort           = "/dev/ttyUSB0"
	defaultBaudRate             = 115200
	defaultFeedRate             = 2000
	defaultMotionTimeoutSeconds = 30
	defaultMotionPollIntervalMS = 10
	defaultGPIOChip             = "/dev/gpiochip0"
	defaultStatusLine           = 20

	defaultMMPerOunce      = 100.0
	defaultMinVolumeOunces = 0.1
	defaultMaxVolumeOunces = 10.0
	defaultPrimeDistanceMM = 200.0
	defaultCleanDistanceMM = 150.0

	defaultI2CDevice           = "/dev/i2c-1"
	defaultCupAddress          = 0x13
	defaultCupThreshold        = 2700
	defaultCupFailureThreshold = 10

	defaultSPIDevice     = "/dev/spidev0.0"
	defaultRFIDResetLine = 25

	defaultSensorPollIntervalMS = 100

	defaultDefaultTag      = "DEFAULT"
	defaultCacheTTLSeconds = 300

	defaultStopGraceMS = 3000

	defaultVCRPlayLine  = 16
	defaultVCREjectLine = 12
	defaultVCRPressMS   = 200

	defaultNotifyRequestTimeout = 10

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60
)

func defaultPumpLines() []int {
	return []int{4, 17, 27, 22, 5, 6, 13, 19, 26, 21}
}

func defaultPlayers() [][]string {
	return [][]string{
		{"omxplayer", "-o", "hdmi"},
		{"cvlc", "--play-and-exit", "--fullscreen"},
	}
}

func defaultMediaExtensions() []string {
	return []string{"mp4", "avi", "mkv", "mov"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:     defaultLogDir,
			DataDir:    defaultDataDir,
			RecipesDir: defaultRecipesDir,
			MediaDir:   defaultMediaDir,
		},
		Motion: Motion{
			SerialPort:     defaultSerialPort,
			BaudRate:       defaultBaudRate,
			FeedRate:       defaultFeedRate,
			TimeoutSeconds: defaultMotionTimeoutSeconds,
			PollIntervalMS: defaultMotionPollIntervalMS,
			StatusChip:     defaultGPIOChip,
			StatusLine:     defaultStatusLine,
			BusyActiveLow:  true,
		},
		Pumps: Pumps{
			GPIOChip:        defaultGPIOChip,
			EnableLines:     defaultPumpLines(),
			MMPerOunce:      defaultMMPerOunce,
			MinVolumeOunces: defaultMinVolumeOunces,
			MaxVolumeOunces: defaultMaxVolumeOunces,
			PrimeDistanceMM: defaultPrimeDistanceMM,
			CleanDistanceMM: defaultCleanDistanceMM,
		},
		Cup: Cup{
			I2CDevice:        defaultI2CDevice,
			Address:          defaultCupAddress,
			Threshold:        defaultCupThreshold,
			FailureThreshold: defaultCupFailureThreshold,
		},
		RFID: RFID{
			SPIDevice: defaultSPIDevice,
			ResetChip: defaultGPIOChip,
			ResetLine: defaultRFIDResetLine,
		},
		Sensors: Sensors{
			PollIntervalMS: defaultSensorPollIntervalMS,
		},
		Recipes: Recipes{
			DefaultTag:      defaultDefaultTag,
			CacheTTLSeconds: defaultCacheTTLSeconds,
		},
		Media: Media{
			Players:     defaultPlayers(),
			Extensions:  defaultMediaExtensions(),
			StopGraceMS: defaultStopGraceMS,
		},
		VCR: VCR{
			GPIOChip:  defaultGPIOChip,
			PlayLine:  defaultVCRPlayLine,
			EjectLine: defaultVCREjectLine,
			PressMS:   defaultVCRPressMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Pours:          true,
			Errors:         true,
			Hardware:       true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
