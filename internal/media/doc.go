// Package media plays per-drink video clips through an external player
// subprocess. Playback is decoration: every failure here is logged and
// swallowed so a missing file or player never blocks a pour.
package media
