package core

import "testing"

func TestRegistryRegisterCrossings(t *testing.T) {
	r := NewRegistry()

	if !r.Register(1, "a") {
		t.Fatal("first connection should cross 0 to 1")
	}
	if r.Register(1, "b") {
		t.Fatal("second connection should not cross")
	}
	if r.Register(1, "b") {
		t.Fatal("duplicate register must be a no-op")
	}

	if r.Unregister(1, "a") {
		t.Fatal("closing one of two connections should not cross")
	}
	if r.Unregister(1, "a") {
		t.Fatal("duplicate unregister must be a no-op")
	}
	if !r.Unregister(1, "b") {
		t.Fatal("last connection should cross 1 to 0")
	}
	if r.Unregister(1, "b") {
		t.Fatal("unregister after empty must be a no-op")
	}
	if r.IsOnline(1) {
		t.Fatal("user with no connections must not be online")
	}
	if got := r.ConnectionsOf(1); len(got) != 0 {
		t.Fatalf("expected no connections, got %v", got)
	}
}

func TestRegistryOrgPresence(t *testing.T) {
	r := NewRegistry()

	if !r.MarkOnline(10, 1) {
		t.Fatal("first MarkOnline should report a change")
	}
	if r.MarkOnline(10, 1) {
		t.Fatal("repeated MarkOnline must be a no-op")
	}
	if got := r.UsersOnlineIn(10); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected [1], got %v", got)
	}

	if !r.MarkOffline(10, 1) {
		t.Fatal("MarkOffline of a present user should report a change")
	}
	if r.MarkOffline(10, 1) {
		t.Fatal("repeated MarkOffline must be a no-op")
	}
	if got := r.UsersOnlineIn(10); len(got) != 0 {
		t.Fatalf("expected empty org presence, got %v", got)
	}
}

func TestRegistryChannelRefcounts(t *testing.T) {
	r := NewRegistry()

	if !r.JoinChannel(5, 1) {
		t.Fatal("first join should make the user present")
	}
	if r.JoinChannel(5, 1) {
		t.Fatal("second connection joining should not re-announce presence")
	}
	if r.LeaveChannel(5, 1) {
		t.Fatal("leaving one of two connections should keep the user present")
	}
	if !r.LeaveChannel(5, 1) {
		t.Fatal("leaving the last connection should end presence")
	}
	if r.LeaveChannel(5, 1) {
		t.Fatal("leave with no presence must be a no-op")
	}
	if got := r.UsersPresentIn(5); len(got) != 0 {
		t.Fatalf("expected empty channel presence, got %v", got)
	}
}

func TestRegistryCounts(t *testing.T) {
	r := NewRegistry()
	r.Register(1, "a")
	r.Register(1, "b")
	r.Register(2, "c")
	r.JoinChannel(5, 1)
	r.JoinChannel(6, 2)

	conns, channels := r.Counts()
	if conns != 3 {
		t.Fatalf("expected 3 connections, got %d", conns)
	}
	if channels != 2 {
		t.Fatalf("expected 2 active channels, got %d", channels)
	}
}

func TestRegistrySnapshotsAreCopies(t *testing.T) {
	r := NewRegistry()
	r.MarkOnline(10, 1)

	snap := r.UsersOnlineIn(10)
	r.MarkOnline(10, 2)
	if len(snap) != 1 {
		t.Fatalf("snapshot must not observe later mutations, got %v", snap)
	}
}
