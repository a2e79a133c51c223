// Package models defines the persisted domain records for SettleUp.
//
// # Identity
//
// Participants are identified by a single string key. For accounts created
// through the RPC surface this is the user's e-mail address; the chat bot
// uses "@username". Groups, expenses and settlements only ever store that
// key, never a pointer to a User.
//
// # Derived records
//
// Settlement rows are derived data. They are regenerated from the group's
// full expense list whenever an expense is added, edited or deleted, and the
// previous set is replaced wholesale. Only the IsSettled/SettledAt
// annotations are written independently ("mark as paid").
//
// # Timestamps
//
// All timestamps are Unix seconds. Zero means "not set".
package models
