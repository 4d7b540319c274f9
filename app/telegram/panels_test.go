package telegram

import "testing"

func TestPageWindow(t *testing.T) {
	cases := []struct {
		name             string
		total, page      int
		lo, hi           int
		hasPrev, hasNext bool
	}{
		{"first page of 23", 23, 0, 0, 10, false, true},
		{"middle page of 23", 23, 1, 10, 20, true, true},
		{"last page of 23", 23, 2, 20, 23, true, false},
		{"single short page", 7, 0, 0, 7, false, false},
		{"exact multiple", 20, 1, 10, 20, true, false},
		{"empty", 0, 0, 0, 0, false, false},
		{"page past the end", 5, 3, 5, 5, true, false},
		{"negative page clamps", 5, -1, 0, 5, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lo, hi, hasPrev, hasNext := pageWindow(tc.total, tc.page, pageSize)
			if lo != tc.lo || hi != tc.hi {
				t.Errorf("window = [%d, %d), want [%d, %d)", lo, hi, tc.lo, tc.hi)
			}
			if hasPrev != tc.hasPrev {
				t.Errorf("hasPrev = %v, want %v", hasPrev, tc.hasPrev)
			}
			if hasNext != tc.hasNext {
				t.Errorf("hasNext = %v, want %v", hasNext, tc.hasNext)
			}
		})
	}
}

func TestNavigatorStack(t *testing.T) {
	n := NewNavigator(&Bot{})
	const adminID = int64(1)

	n.pushFrame(adminID, panelRoot, 0)
	n.pushFrame(adminID, panelUsers, 0)
	n.pushFrame(adminID, panelUsers, 2) // pagination updates in place
	n.pushFrame(adminID, panelStats, 0)

	if f := n.popFrame(adminID); f.panel != panelUsers || f.page != 2 {
		t.Errorf("after pop: %+v, want users page 2", f)
	}
	if f := n.popFrame(adminID); f.panel != panelRoot {
		t.Errorf("after second pop: %+v, want root", f)
	}
	// root is the floor no matter how often back is pressed
	for i := 0; i < 3; i++ {
		if f := n.popFrame(adminID); f.panel != panelRoot {
			t.Fatalf("pop %d left panel %s, want root", i, f.panel)
		}
	}
}
