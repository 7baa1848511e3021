package session

import (
	"encoding/json"
	"fmt"

	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/shared"
)

// SnapshotKey is the durable storage key of the session snapshot.
const SnapshotKey = "adpacks-session"

// SnapshotVersion is the version written by this build.
const SnapshotVersion = 2

type envelope struct {
	Version *int            `json:"version"`
	State   json.RawMessage `json:"state"`
}

// legacyState covers versions 0 and 1, which predate linked ad accounts.
type legacyState struct {
	AccessToken *string       `json:"accessToken"`
	User        *models.User  `json:"user"`
	Packs       []models.Pack `json:"packs"`
}

// EncodeSnapshot serializes s in the current versioned format.
func EncodeSnapshot(s models.Session) (string, error) {
	state, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	version := SnapshotVersion
	data, err := json.Marshal(envelope{Version: &version, State: state})
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	return string(data), nil
}

// DecodeSnapshot parses any known snapshot version into a session.
//
// Version 0 stored the state flat without an envelope. Version 1 had no ad accounts.
func DecodeSnapshot(raw string) (models.Session, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return models.Session{}, fmt.Errorf("%w: corrupt snapshot: %v", shared.ErrPersistence, err)
	}

	version := 0
	if env.Version != nil {
		version = *env.Version
	}

	switch version {
	case 0:
		return decodeLegacy([]byte(raw))
	case 1:
		return decodeLegacy(env.State)
	case SnapshotVersion:
		var s models.Session
		if err := json.Unmarshal(env.State, &s); err != nil {
			return models.Session{}, fmt.Errorf("%w: corrupt snapshot state: %v", shared.ErrPersistence, err)
		}
		return normalize(s), nil
	default:
		return models.Session{}, fmt.Errorf("%w: unsupported snapshot version %d", shared.ErrPersistence, version)
	}
}

func decodeLegacy(data []byte) (models.Session, error) {
	var legacy legacyState
	if len(data) == 0 {
		return models.Session{}, fmt.Errorf("%w: empty snapshot state", shared.ErrPersistence)
	}
	if err := json.Unmarshal(data, &legacy); err != nil {
		return models.Session{}, fmt.Errorf("%w: corrupt legacy snapshot: %v", shared.ErrPersistence, err)
	}
	return normalize(models.Session{
		AccessToken: legacy.AccessToken,
		User:        legacy.User,
		Packs:       legacy.Packs,
	}), nil
}

// normalize fills empty sequences and drops duplicate pack ids.
func normalize(s models.Session) models.Session {
	if s.AdAccounts == nil {
		s.AdAccounts = []models.AdAccount{}
	}
	s.Packs = dedupePacks(s.Packs)
	return s
}

func (s *Store) persist(snap models.Session) {
	if s.persister == nil {
		return
	}
	data, err := EncodeSnapshot(snap)
	if err != nil {
		s.logger.Warn("dropping session write", "error", err)
		return
	}
	s.persister.SetItem(SnapshotKey, data)
}

func (s *Store) restore() (models.Session, bool) {
	if s.persister == nil {
		return models.Session{}, false
	}

	raw, ok, err := s.persister.GetItem(SnapshotKey)
	if err != nil {
		s.logger.Warn("failed to read session snapshot", "error", err)
		return models.Session{}, false
	}
	if !ok {
		return models.Session{}, false
	}

	restored, err := DecodeSnapshot(raw)
	if err != nil {
		s.logger.Warn("discarding session snapshot", "error", err)
		return models.Session{}, false
	}
	return restored, true
}
