// Package keygen generates RSA key pairs for SSH authentication.
//
// Keys are produced in PEM format (private) and OpenSSH authorized_keys
// format (public), suitable for injecting into benchmark servers so the
// reachability probe can dial them.
package keygen
