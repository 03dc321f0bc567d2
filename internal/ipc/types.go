package ipc

// PingRequest checks that the daemon is reachable.
type PingRequest struct{}

// PingResponse acknowledges a ping.
type PingResponse struct {
	Pong bool `json:"pong"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of a configured device or binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// StatusResponse represents combined daemon and machine status information.
type StatusResponse struct {
	Running        bool               `json:"running"`
	State          string             `json:"state"`
	JobID          string             `json:"job_id,omitempty"`
	Tag            string             `json:"tag,omitempty"`
	Recipe         string             `json:"recipe,omitempty"`
	Fault          string             `json:"fault,omitempty"`
	CupPresent     bool               `json:"cup_present"`
	PoursTotal     int                `json:"pours_total"`
	PoursCompleted int                `json:"pours_completed"`
	PoursFailed    int                `json:"pours_failed"`
	JournalPath    string             `json:"journal_path"`
	LockPath       string             `json:"lock_path"`
	Dependencies   []DependencyStatus `json:"dependencies"`
	PID            int                `json:"pid"`
}

// PourRequest starts a pour for the named tape tag.
type PourRequest struct {
	Tag string `json:"tag"`
}

// PourResponse reports pour admission.
type PourResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// ResetRequest clears a fault and returns the machine to idle.
type ResetRequest struct{}

// ResetResponse reports reset outcome.
type ResetResponse struct {
	Reset   bool   `json:"reset"`
	Message string `json:"message"`
}

// PrimeRequest primes a single pump channel.
type PrimeRequest struct {
	Channel int `json:"channel"`
}

// PrimeResponse reports prime outcome.
type PrimeResponse struct {
	Done    bool   `json:"done"`
	Message string `json:"message"`
}

// CleanRequest flushes a single pump channel.
type CleanRequest struct {
	Channel int `json:"channel"`
}

// CleanResponse reports clean outcome.
type CleanResponse struct {
	Done    bool   `json:"done"`
	Message string `json:"message"`
}

// RunPumpRequest runs a pump for an explicit travel distance.
type RunPumpRequest struct {
	Channel    int     `json:"channel"`
	DistanceMM float64 `json:"distance_mm"`
}

// RunPumpResponse reports run outcome.
type RunPumpResponse struct {
	Done    bool   `json:"done"`
	Message string `json:"message"`
}

// RecipeIngredient is one pump step of a recipe.
type RecipeIngredient struct {
	Pump     int     `json:"pump"`
	Name     string  `json:"name"`
	AmountOz float64 `json:"amount_oz"`
}

// RecipeSummary describes a loaded recipe.
type RecipeSummary struct {
	Name        string             `json:"name"`
	Tag         string             `json:"tag"`
	Ingredients []RecipeIngredient `json:"ingredients"`
	TotalOunces float64            `json:"total_ounces"`
	Source      string             `json:"source"`
}

// RecipesRequest lists loaded recipes.
type RecipesRequest struct{}

// RecipesResponse contains all loaded recipes.
type RecipesResponse struct {
	Recipes []RecipeSummary `json:"recipes"`
}

// ReloadRecipesRequest forces a rescan of the recipe directory.
type ReloadRecipesRequest struct{}

// ReloadRecipesResponse reports the number of recipes now loaded.
type ReloadRecipesResponse struct {
	Count int `json:"count"`
}

// HistoryRequest fetches recent journal entries.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryEntry is one journal row.
type HistoryEntry struct {
	ID               string `json:"id"`
	Tag              string `json:"tag"`
	Recipe           string `json:"recipe"`
	Operation        string `json:"operation"`
	Status           string `json:"status"`
	Fault            string `json:"fault,omitempty"`
	IngredientsTotal int    `json:"ingredients_total"`
	IngredientsDone  int    `json:"ingredients_done"`
	StartedAt        string `json:"started_at"`
	FinishedAt       string `json:"finished_at,omitempty"`
}

// HistoryResponse contains recent journal entries, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
