// Package core implements the match runtime for snakepit.
//
// Every match is owned by one actor goroutine that reads commands from a
// bounded mailbox and is the only code that touches the match state. A tick
// producer goroutine injects a tick into the mailbox on a fixed period, and
// the Directory maps match IDs to actor handles for concurrent callers.
package core
