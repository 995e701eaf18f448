package services

import (
	"fmt"
	"testing"

	"stagesync/pkg/models"
)

func TestRegisterCreatesRoom(t *testing.T) {
	r := NewRegistry()

	prior, priorEmptied := r.Register("ABC123", "conn-1", models.RoleStage, "MacBook")
	if prior != "" || priorEmptied {
		t.Errorf("fresh registration should have no prior room, got %q emptied=%v", prior, priorEmptied)
	}
	if r.RoomCount() != 1 {
		t.Fatalf("expected 1 room, got %d", r.RoomCount())
	}
	if r.DeviceCount("ABC123") != 1 {
		t.Fatalf("expected 1 device, got %d", r.DeviceCount("ABC123"))
	}

	devices := r.ListDevices("ABC123")
	if len(devices) != 1 || devices[0].ID != "conn-1" || devices[0].Role != models.RoleStage || devices[0].Name != "MacBook" {
		t.Errorf("unexpected device entry: %+v", devices)
	}
}

func TestListDevicesJoinOrder(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		r.Register("ABC123", fmt.Sprintf("conn-%d", i), models.RoleRemote, "")
	}

	devices := r.ListDevices("ABC123")
	if len(devices) != 5 {
		t.Fatalf("expected 5 devices, got %d", len(devices))
	}
	for i, d := range devices {
		if d.ID != fmt.Sprintf("conn-%d", i) {
			t.Errorf("device %d out of join order: %s", i, d.ID)
		}
	}
}

func TestRegisterMovesDeviceBetweenRooms(t *testing.T) {
	r := NewRegistry()
	r.Register("ROOMAA", "conn-1", models.RoleStage, "a")
	r.Register("ROOMAA", "conn-2", models.RoleRemote, "b")

	prior, priorEmptied := r.Register("ROOMBB", "conn-2", models.RoleRemote, "b")
	if prior != "ROOMAA" {
		t.Errorf("expected prior room ROOMAA, got %q", prior)
	}
	if priorEmptied {
		t.Error("ROOMAA still has a device, should not be emptied")
	}
	if r.DeviceCount("ROOMAA") != 1 || r.DeviceCount("ROOMBB") != 1 {
		t.Errorf("unexpected counts: A=%d B=%d", r.DeviceCount("ROOMAA"), r.DeviceCount("ROOMBB"))
	}
	if roomID, _ := r.RoomOf("conn-2"); roomID != "ROOMBB" {
		t.Errorf("conn-2 should be in ROOMBB, got %q", roomID)
	}
}

func TestRegisterMoveEmptiesPriorRoom(t *testing.T) {
	r := NewRegistry()
	r.Register("ROOMAA", "conn-1", models.RoleStage, "")

	prior, priorEmptied := r.Register("ROOMBB", "conn-1", models.RoleStage, "")
	if prior != "ROOMAA" || !priorEmptied {
		t.Errorf("expected ROOMAA emptied, got %q emptied=%v", prior, priorEmptied)
	}
	if r.RoomCount() != 1 {
		t.Errorf("expected the emptied room to be gone, have %d rooms", r.RoomCount())
	}
}

func TestRejoinSameRoomRefreshesEntry(t *testing.T) {
	r := NewRegistry()
	r.Register("ABC123", "conn-1", models.RoleRemote, "old")
	r.Register("ABC123", "conn-1", models.RoleStage, "new")

	if r.DeviceCount("ABC123") != 1 {
		t.Fatalf("re-join must not duplicate the device, got %d", r.DeviceCount("ABC123"))
	}
	d := r.ListDevices("ABC123")[0]
	if d.Role != models.RoleStage || d.Name != "new" {
		t.Errorf("entry not refreshed: %+v", d)
	}
}

func TestUnregisterDestroysEmptyRoom(t *testing.T) {
	r := NewRegistry()
	r.Register("ABC123", "conn-1", models.RoleStage, "")

	roomID, emptied, ok := r.Unregister("conn-1")
	if !ok || roomID != "ABC123" || !emptied {
		t.Fatalf("unexpected unregister result: %q %v %v", roomID, emptied, ok)
	}
	if r.RoomCount() != 0 {
		t.Error("room should be destroyed the instant its device set empties")
	}
	if _, _, ok := r.Unregister("conn-1"); ok {
		t.Error("second unregister should report not-a-member")
	}
}

func TestUpdateRole(t *testing.T) {
	r := NewRegistry()
	if _, err := r.UpdateRole("ghost", models.RoleStage, ""); err != ErrNotRegistered {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}

	r.Register("ABC123", "conn-1", models.RoleRemote, "iPad")
	roomID, err := r.UpdateRole("conn-1", models.RoleTeleprompter, "")
	if err != nil || roomID != "ABC123" {
		t.Fatalf("unexpected result: %q %v", roomID, err)
	}
	d := r.ListDevices("ABC123")[0]
	if d.Role != models.RoleTeleprompter {
		t.Errorf("role not updated: %+v", d)
	}
	if d.Name != "iPad" {
		t.Errorf("empty name must not clobber the existing one: %+v", d)
	}
}

func TestUnknownRoomQueriesReturnEmpty(t *testing.T) {
	r := NewRegistry()
	if devices := r.ListDevices("NOROOM"); len(devices) != 0 {
		t.Errorf("expected empty result for unknown room, got %v", devices)
	}
	if r.DeviceCount("NOROOM") != 0 {
		t.Error("expected zero count for unknown room")
	}
}
