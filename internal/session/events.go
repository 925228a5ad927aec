// internal/session/events.go
package session

// Outbound room event types. Each broadcast mirrors exactly one state
// transition and carries an RFC3339 timestamp plus the relevant identifiers.
const (
	EventConnected           = "connected"
	EventPlayerJoined        = "player-joined"
	EventPlayerLeft          = "player-left"
	EventPlayerKicked        = "player-kicked"
	EventKickedFromLobby     = "kicked-from-lobby" // private user room only
	EventHostTransferred     = "host-transferred"
	EventLobbyClosed         = "lobby-closed"
	EventSettingsUpdated     = "lobby-settings-updated"
	EventGameStarted         = "game-started"
	EventVotingStarted       = "voting-started"
	EventVoteCast            = "vote-cast"
	EventVoteRemoved         = "vote-removed"
	EventVotingEnded         = "voting-ended"
	EventSkipVoteInitiated   = "skip-vote-initiated"
	EventSkipVoteUpdated     = "skip-vote-updated"
	EventSkipVoteExecuted    = "skip-vote-executed"
	EventPlayerDisconnected  = "player-disconnected"
	EventTurnMade            = "turn-made"
	EventGameResultSubmitted = "game-result-submitted"
)
