package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no session exists for a room code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrParticipantNotFound is returned when a user acts before joining.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrNotHost is returned when a non-host attempts to start a match.
	ErrNotHost = errors.New("only the host may start the game")
	// ErrMatchNotRunning is returned for answers outside an active match.
	ErrMatchNotRunning = errors.New("no match in progress")
	// ErrSpectator is returned when a spectator attempts to answer.
	ErrSpectator = errors.New("spectators cannot answer")
	// ErrNoQuestions indicates the question pool had nothing for the filters.
	ErrNoQuestions = errors.New("no questions available")
	// ErrRoomCodeTaken indicates a provisioning collision on the room code.
	ErrRoomCodeTaken = errors.New("room code already in use")
)
