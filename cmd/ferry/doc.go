// Command ferry is the operator CLI: run a transfer pass, inspect the
// ledger, manage configuration, and test notifications.
package main
