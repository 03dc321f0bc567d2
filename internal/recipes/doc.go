// Package recipes maps tape UIDs to drink recipes loaded from TOML files.
// The library fails closed: a tag resolves only when every ingredient names
// a valid pump channel, otherwise the pour is refused. Resolution falls back
// to the default recipe when the tag has no binding of its own.
package recipes
