// Package process runs child commands with a wall-clock bound and captures their output and exit status.
package process
