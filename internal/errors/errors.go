// Package errors provides sentinel errors and custom error types for the revstack application.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool { return errors.As(err, target) }

// Sentinel errors for common conditions
var (
	// ErrEmptyStack indicates that the requested revision range contains no
	// described, mutable changes.
	ErrEmptyStack = errors.New("no changes to work with")

	// ErrMultipleParents indicates that a change inside the requested range
	// is a merge and cannot participate in a linear stack.
	ErrMultipleParents = errors.New("change has multiple parents")

	// ErrUnresolvableBase indicates that a change's review base could not be
	// determined from the trunk or its parent's pull request.
	ErrUnresolvableBase = errors.New("cannot determine base for change")

	// ErrRemoteConflict indicates that the remote branch tip is not the
	// commit this tool last pushed.
	ErrRemoteConflict = errors.New("remote branch has diverged")

	// ErrAuth indicates that GitHub rejected our credentials.
	ErrAuth = errors.New("github authentication failed")

	// ErrPRNotFound indicates that a referenced pull request does not exist.
	ErrPRNotFound = errors.New("pull request not found")

	// ErrMergeConflict indicates that pulled remote content overlaps with
	// local edits and the change is now in a conflicted state.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrCycleDetected indicates that a pull request base chain loops back
	// on itself.
	ErrCycleDetected = errors.New("pull request base chain contains a cycle")

	// ErrNotInitialized indicates that the repository has no revstack
	// configuration yet.
	ErrNotInitialized = errors.New("repository not initialized, run 'revstack init'")
)

// MultipleParentsError reports a merge change found inside a stack range.
type MultipleParentsError struct {
	ChangeID string
}

func (e *MultipleParentsError) Error() string {
	return fmt.Sprintf("change %s has multiple parents and cannot be part of a linear stack", e.ChangeID)
}

// Is returns true if the target error is ErrMultipleParents
func (e *MultipleParentsError) Is(target error) bool {
	return target == ErrMultipleParents
}

// NewMultipleParentsError creates a new MultipleParentsError
func NewMultipleParentsError(changeID string) *MultipleParentsError {
	return &MultipleParentsError{ChangeID: changeID}
}

// UnresolvableBaseError reports a change whose review base is neither the
// trunk nor a parent with an open pull request.
type UnresolvableBaseError struct {
	ChangeID string
	ParentID string
}

func (e *UnresolvableBaseError) Error() string {
	if e.ParentID != "" {
		return fmt.Sprintf("cannot determine base for change %s: parent %s is neither the trunk nor associated with a pull request", e.ChangeID, e.ParentID)
	}
	return fmt.Sprintf("cannot determine base for change %s", e.ChangeID)
}

// Is returns true if the target error is ErrUnresolvableBase
func (e *UnresolvableBaseError) Is(target error) bool {
	return target == ErrUnresolvableBase
}

// NewUnresolvableBaseError creates a new UnresolvableBaseError
func NewUnresolvableBaseError(changeID, parentID string) *UnresolvableBaseError {
	return &UnresolvableBaseError{ChangeID: changeID, ParentID: parentID}
}

// RemoteConflictError reports a remote branch whose tip moved since the last
// recorded push. Retrying with force overwrites the remote side.
type RemoteConflictError struct {
	Branch     string
	RemoteHead string
	WantHead   string
}

func (e *RemoteConflictError) Error() string {
	return fmt.Sprintf("branch %s diverged on the remote (expected %s, found %s); use --force to overwrite", e.Branch, short(e.WantHead), short(e.RemoteHead))
}

// Is returns true if the target error is ErrRemoteConflict
func (e *RemoteConflictError) Is(target error) bool {
	return target == ErrRemoteConflict
}

// NewRemoteConflictError creates a new RemoteConflictError
func NewRemoteConflictError(branch, remoteHead, wantHead string) *RemoteConflictError {
	return &RemoteConflictError{Branch: branch, RemoteHead: remoteHead, WantHead: wantHead}
}

// MergeConflictError reports a change left in a conflicted state after
// pulling remote content. Non-fatal: later stack elements still proceed.
type MergeConflictError struct {
	ChangeID string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("change %s has conflicts after pulling remote content, resolve them locally", e.ChangeID)
}

// Is returns true if the target error is ErrMergeConflict
func (e *MergeConflictError) Is(target error) bool {
	return target == ErrMergeConflict
}

// NewMergeConflictError creates a new MergeConflictError
func NewMergeConflictError(changeID string) *MergeConflictError {
	return &MergeConflictError{ChangeID: changeID}
}

// CycleDetectedError reports a pull request base chain that revisits a pull
// request it already contains.
type CycleDetectedError struct {
	// Path holds the PR numbers in visit order, ending with the repeat.
	Path []int
}

func (e *CycleDetectedError) Error() string {
	parts := make([]string, len(e.Path))
	for i, n := range e.Path {
		parts[i] = fmt.Sprintf("#%d", n)
	}
	return fmt.Sprintf("pull request base chain contains a cycle: %s", strings.Join(parts, " -> "))
}

// Is returns true if the target error is ErrCycleDetected
func (e *CycleDetectedError) Is(target error) bool {
	return target == ErrCycleDetected
}

// NewCycleDetectedError creates a new CycleDetectedError
func NewCycleDetectedError(path []int) *CycleDetectedError {
	return &CycleDetectedError{Path: path}
}

// CommandError represents an error from an external command execution.
type CommandError struct {
	Command string
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s command failed", e.Command)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" %v", e.Args)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", e.Stdout)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new CommandError
func NewCommandError(command string, args []string, stdout, stderr string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Args:    args,
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     err,
	}
}

func short(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
