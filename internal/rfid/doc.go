// Package rfid drives the MFRC522 reader over spidev to detect the RFID tag
// embedded in each VHS tape.
//
// Tags are reported as uppercase hex UID strings. Detection is non-blocking:
// a poll with no tag in the field is an absence, not an error. Edge-triggered
// re-fire suppression is the sensor poller's concern, not this package's.
package rfid
