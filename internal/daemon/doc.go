// Package daemon ties the machine together as a single long-running
// process. Exactly one daemon may run per host, enforced with a file lock:
// it alone owns the GPIO lines, the serial port, and the sensor bus, so a
// second instance can never fight the first over hardware. The control CLI
// reaches the daemon through the IPC socket only.
package daemon
