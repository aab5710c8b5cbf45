// Package routing holds the letter signature state machine.
//
// A letter is fanned out to one signature row per addressed unit. Rows move
// NOT_ARRIVE -> ARRIVE -> SIGNED and never back. Sign-and-forward signs an
// ARRIVE row and hands the letter to a NOT_ARRIVE row of the same letter in
// one step; the letter becomes FINISH exactly when every row is SIGNED.
//
// Functions here are pure: they validate input and plan a transition against
// a snapshot of the rows. Persisting the plan atomically is the caller's job.
package routing
