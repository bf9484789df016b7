package infra

import (
	"context"
	"errors"
	"ipfs-service-provider/model"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestPeerDirectory(t *testing.T) (*RedisPeerDirectory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisPeerDirectory(zerolog.Nop(), client, time.Minute), mr
}

func TestRedisPeerDirectory_ThisNode(t *testing.T) {
	dir, _ := newTestPeerDirectory(t)
	ctx := context.Background()

	if _, err := dir.ThisNode(ctx); !errors.Is(err, ErrNodeNotAnnounced) {
		t.Fatalf("expected ErrNodeNotAnnounced, got %v", err)
	}

	node := &model.ThisNode{
		IPFSID:         "12D3KooWThisNode",
		IPFSMultiaddrs: []string{"/ip4/127.0.0.1/tcp/4001"},
		BchAddr:        "bitcoincash:qq",
		PubKey:         "02ab",
	}
	if err := dir.SetThisNode(ctx, node); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := dir.ThisNode(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IPFSID != node.IPFSID || len(got.IPFSMultiaddrs) != 1 || got.PubKey != "02ab" {
		t.Errorf("unexpected node %+v", got)
	}
}

func TestRedisPeerDirectory_ConnectedPeersKeepOrderAndDuplicates(t *testing.T) {
	dir, _ := newTestPeerDirectory(t)
	ctx := context.Background()

	if err := dir.SetConnectedPeers(ctx, []string{"b", "a", "b"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := dir.ConnectedPeers(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 3 || got[0] != "b" || got[1] != "a" || got[2] != "b" {
		t.Errorf("unexpected peers %v", got)
	}

	// 新的回報整批替換
	if err := dir.SetConnectedPeers(ctx, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ = dir.ConnectedPeers(ctx)
	if len(got) != 0 {
		t.Errorf("expected no peers, got %v", got)
	}
}

func TestRedisPeerDirectory_PeerDataExpires(t *testing.T) {
	dir, mr := newTestPeerDirectory(t)
	ctx := context.Background()

	for _, id := range []string{"peerB", "peerA"} {
		err := dir.UpsertPeer(ctx, model.PeerData{
			From: id,
			Data: model.PeerAnnouncement{JSONLD: model.PeerJSONLD{Name: id + "-name"}},
		})
		if err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	peers, err := dir.PeerData(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(peers) != 2 || peers[0].From != "peerA" || peers[1].From != "peerB" {
		t.Fatalf("unexpected peers %+v", peers)
	}

	mr.FastForward(30 * time.Second)
	if err := dir.UpsertPeer(ctx, model.PeerData{From: "peerA"}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	mr.FastForward(45 * time.Second)

	peers, err = dir.PeerData(ctx)
	if err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if len(peers) != 1 || peers[0].From != "peerA" {
		t.Errorf("expected only peerA to remain, got %+v", peers)
	}
	if mr.HGet(peersKey, "peerB") != "" {
		t.Error("stale peer should be removed from hash")
	}
}

func TestRedisPeerDirectory_UpsertRejectsMissingIDs(t *testing.T) {
	dir, _ := newTestPeerDirectory(t)
	ctx := context.Background()

	if err := dir.UpsertPeer(ctx, model.PeerData{}); err == nil {
		t.Error("expected error for peer without sender")
	}
	if err := dir.UpsertRelay(ctx, model.RelayInfo{}); err == nil {
		t.Error("expected error for relay without id")
	}
}

func TestRedisPeerDirectory_Relays(t *testing.T) {
	dir, _ := newTestPeerDirectory(t)
	ctx := context.Background()

	relays, err := dir.Relays(ctx)
	if err != nil {
		t.Fatalf("get empty: %v", err)
	}
	if len(relays) != 0 {
		t.Fatalf("expected no relays, got %v", relays)
	}

	_ = dir.UpsertRelay(ctx, model.RelayInfo{IPFSID: "relay2", Connected: true})
	_ = dir.UpsertRelay(ctx, model.RelayInfo{IPFSID: "relay1", Multiaddr: "/ip4/1.2.3.4/tcp/4001"})
	_ = dir.UpsertRelay(ctx, model.RelayInfo{IPFSID: "relay2", Connected: false})

	relays, err = dir.Relays(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(relays) != 2 {
		t.Fatalf("expected 2 relays, got %d", len(relays))
	}
	if relays[0].IPFSID != "relay1" || relays[1].IPFSID != "relay2" || relays[1].Connected {
		t.Errorf("unexpected relays %+v", relays)
	}
}
