// Command coffeeman is the control CLI for the VHS cocktail machine. It
// launches and supervises the daemon that owns the hardware, and talks to it
// over a Unix socket for pours, maintenance, recipes, and history.
package main
