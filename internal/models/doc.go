// Package models defines the core domain models for CameraTogether.
//
// # Models
//
//   - Group: a collage session that moves from recruiting members to a
//     synchronized capture and finally to a finished collage
//   - Member: one participant of a group, with a one-way ready flag
//   - Template: a collage layout made of SVG-path frames
//   - Photo: one uploaded capture, bound to a frame index
//   - User: a registered identity, used to resolve display names
//
// # Group lifecycle
//
// The status of a group follows a fixed progression:
//
//	recruiting -> ready_check -> countdown -> photo_taking -> completed
//
// Any non-terminal status may also move to expired. Transitions are guarded
// by methods on Group (Finalize, ScheduleCapture, BeginPhotoTaking, Complete,
// Expire) so that the server and the on-device coordinator apply the same
// rules.
//
// # Wire values
//
// Kinds and statuses travel as snake_case strings. ParseGroupKind and
// ParseGroupStatus map them onto the closed set of constants and reject
// anything else.
package models
