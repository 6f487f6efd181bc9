package relay

import (
	"context"
	"fmt"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module"
)

// Proposal announces a message the proposer would like the group to sign.
type Proposal struct {
	GroupID string `json:"groupId"`
	Address string `json:"address"`
	Message string `json:"message"`
	Digest  []byte `json:"digest"`
}

// AddressAnnouncement announces the address computed by a key generation.
type AddressAnnouncement struct {
	GroupID string `json:"groupId"`
	Address string `json:"address"`
}

// CreateGroup creates a group of parties with the given parameters.
func CreateGroup(ctx context.Context, rpc module.RPCCaller, label string, params tss.Parameters) (*tss.Group, error) {
	var group tss.Group
	err := rpc.RPC(ctx, MethodGroupCreate, []interface{}{label, params}, &group)
	if err != nil {
		return nil, fmt.Errorf("could not create group: %w", err)
	}
	return &group, nil
}

// JoinGroup joins an existing group.
func JoinGroup(ctx context.Context, rpc module.RPCCaller, groupID string) (*tss.Group, error) {
	var group tss.Group
	err := rpc.RPC(ctx, MethodGroupJoin, []interface{}{groupID}, &group)
	if err != nil {
		return nil, fmt.Errorf("could not join group %s: %w", groupID, err)
	}
	return &group, nil
}

// CreateSession creates a session of the given kind in a group.
func CreateSession(ctx context.Context, rpc module.RPCCaller, groupID string, kind tss.SessionKind) (*tss.Session, error) {
	var session tss.Session
	err := rpc.RPC(ctx, MethodSessionCreate, []interface{}{groupID, kind}, &session)
	if err != nil {
		return nil, fmt.Errorf("could not create %s session: %w", kind, err)
	}
	return &session, nil
}

// JoinSession joins an existing session of a group.
func JoinSession(ctx context.Context, rpc module.RPCCaller, groupID string, sessionID string) (*tss.Session, error) {
	var session tss.Session
	err := rpc.RPC(ctx, MethodSessionJoin, []interface{}{groupID, sessionID}, &session)
	if err != nil {
		return nil, fmt.Errorf("could not join session %s: %w", sessionID, err)
	}
	return &session, nil
}

// Signup registers the party with a key generation session and returns the
// party number assigned by the server.
func Signup(ctx context.Context, rpc module.RPCCaller, groupID string, sessionID string) (*tss.PartySignup, error) {
	var signup tss.PartySignup
	err := rpc.RPC(ctx, MethodSessionSignup, []interface{}{groupID, sessionID}, &signup)
	if err != nil {
		return nil, fmt.Errorf("could not sign up for session %s: %w", sessionID, err)
	}
	return &signup, nil
}

// Load registers the party's key share index with a signing session and
// returns the signup number assigned by the server.
func Load(ctx context.Context, rpc module.RPCCaller, groupID string, sessionID string, index uint16) (*tss.PartySignup, error) {
	var signup tss.PartySignup
	err := rpc.RPC(ctx, MethodSessionLoad, []interface{}{groupID, sessionID, index}, &signup)
	if err != nil {
		return nil, fmt.Errorf("could not load key share %d into session %s: %w", index, sessionID, err)
	}
	return &signup, nil
}

// RelayMessage asks the server to relay a protocol message to the other parties of a session.
func RelayMessage(ctx context.Context, rpc module.RPCCaller, groupID string, sessionID string, msg *messages.Message) error {
	err := rpc.RPC(ctx, MethodSessionMessage, []interface{}{groupID, sessionID, msg}, nil)
	if err != nil {
		return fmt.Errorf("could not relay %s: %w", msg, err)
	}
	return nil
}

// NotifyAddress announces the address of a completed key generation to the group.
func NotifyAddress(ctx context.Context, client module.SessionClient, groupID string, address string) error {
	return client.Notify(ctx, MethodNotifyAddress, AddressAnnouncement{GroupID: groupID, Address: address})
}

// NotifyProposal announces a signing proposal to the group.
func NotifyProposal(ctx context.Context, client module.SessionClient, proposal Proposal) error {
	return client.Notify(ctx, MethodNotifyProposal, proposal)
}
