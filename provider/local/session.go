package local

import (
	"encoding/json"

	"github.com/goliatone/go-authclient"
)

func encodeSession(session *authclient.GatewaySession) (string, error) {
	encoded, err := json.Marshal(session)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func decodeSession(raw string) (*authclient.GatewaySession, error) {
	var session authclient.GatewaySession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, err
	}
	return &session, nil
}
