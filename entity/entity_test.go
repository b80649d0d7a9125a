package entity

import (
	"testing"

	"github.com/driftwood-engine/driftwood/common"
	"github.com/driftwood-engine/driftwood/script"
)

func vecOf(x, y float64) common.Vec2 {
	return common.Vec2{X: x, Y: y}
}

func rectOf(x, y, w, h float64) common.Rect {
	return common.Rect{X: x, Y: y, Width: w, Height: h}
}

func newTestDirectory(t *testing.T) (*script.Runtime, *Directory) {
	t.Helper()
	rt := script.NewRuntime(nil)
	t.Cleanup(rt.Close)
	return rt, NewDirectory(rt, nil)
}

func mustComponent(t *testing.T, kind Kind) *Component {
	t.Helper()
	c, err := NewComponent(kind)
	if err != nil {
		t.Fatalf("NewComponent(%s): %v", kind, err)
	}
	return c
}

func TestComponentListAddRemove(t *testing.T) {
	cases := []struct {
		name    string
		adds    int
		removes int
	}{
		{"none", 0, 0},
		{"single", 1, 0},
		{"add_remove", 1, 1},
		{"many", 5, 2},
		{"drain", 4, 4},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, dir := newTestDirectory(t)
			e := dir.Create()

			comps := make([]*Component, 0, c.adds)
			for i := 0; i < c.adds; i++ {
				comp := mustComponent(t, KindText)
				if !e.Add(comp) {
					t.Fatalf("add %d failed", i)
				}
				comps = append(comps, comp)
			}
			for i := 0; i < c.removes; i++ {
				if !e.Remove(comps[i]) {
					t.Fatalf("remove %d failed", i)
				}
			}

			want := c.adds - c.removes
			if got := e.Count(); got != want {
				t.Fatalf("count = %d, want %d", got, want)
			}
			// No stale slots: every index under count is non-nil, and the
			// survivors kept their relative order.
			for i := 0; i < e.Count(); i++ {
				if e.At(i) == nil {
					t.Fatalf("hole at index %d", i)
				}
				if e.At(i) != comps[c.removes+i] {
					t.Fatalf("order broken at index %d", i)
				}
			}
			if e.At(e.Count()) != nil {
				t.Fatalf("read past count returned a component")
			}
		})
	}
}

func TestComponentListInsert(t *testing.T) {
	_, dir := newTestDirectory(t)
	e := dir.Create()

	a := mustComponent(t, KindText)
	b := mustComponent(t, KindText)
	e.Add(a)
	e.Add(b)

	t.Run("insert_front", func(t *testing.T) {
		front := mustComponent(t, KindVelocity)
		if !e.Insert(front, 0) {
			t.Fatalf("insert at 0 failed")
		}
		if e.At(0) != front || e.At(1) != a || e.At(2) != b {
			t.Fatalf("relative order not preserved after front insert")
		}
	})

	t.Run("insert_end", func(t *testing.T) {
		end := mustComponent(t, KindVelocity)
		if !e.Insert(end, e.Count()) {
			t.Fatalf("insert at count failed")
		}
		if e.At(e.Count()-1) != end {
			t.Fatalf("end insert not at end")
		}
	})

	t.Run("insert_out_of_bounds", func(t *testing.T) {
		c := mustComponent(t, KindText)
		if e.Insert(c, -1) || e.Insert(c, e.Count()+1) {
			t.Fatalf("out-of-bounds insert accepted")
		}
	})
}

func TestComponentListPopShiftFindGet(t *testing.T) {
	_, dir := newTestDirectory(t)
	e := dir.Create()

	text1 := mustComponent(t, KindText)
	vel := mustComponent(t, KindVelocity)
	text2 := mustComponent(t, KindText)
	e.Add(text1)
	e.Add(vel)
	e.Add(text2)

	if got := e.Find(KindText); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("Find(text) = %v, want [1 3]", got)
	}
	if got := e.Find(KindTimer); got != nil {
		t.Fatalf("Find(timer) = %v, want none", got)
	}

	if got := e.Get(vel.ID()); got != vel {
		t.Fatalf("Get by id returned %v", got)
	}
	if got := e.Get(999999); got != nil {
		t.Fatalf("Get miss returned %v, want nil", got)
	}

	if got := e.Pop(); got != text2 {
		t.Fatalf("Pop returned wrong component")
	}
	if got := e.Shift(); got != text1 {
		t.Fatalf("Shift returned wrong component")
	}
	if e.Count() != 1 || e.At(0) != vel {
		t.Fatalf("unexpected list after pop/shift")
	}
	if text2.Owner() != nil || text1.Owner() != nil {
		t.Fatalf("detached components still report an owner")
	}
}

func TestSingleOwnerReparenting(t *testing.T) {
	_, dir := newTestDirectory(t)
	e1 := dir.Create()
	e2 := dir.Create()
	c := mustComponent(t, KindText)

	if !e1.Add(c) {
		t.Fatalf("first add failed")
	}
	if e2.Add(c) {
		t.Fatalf("component accepted into a second list while attached")
	}
	if !e1.Remove(c) {
		t.Fatalf("remove failed")
	}
	if !e2.Add(c) {
		t.Fatalf("reparent after explicit remove failed")
	}
	if c.Owner() != e2 {
		t.Fatalf("owner = %v, want e2", c.Owner())
	}
}

func TestDestroyedEntityRejectsMutation(t *testing.T) {
	_, dir := newTestDirectory(t)
	e := dir.Create()
	kept := mustComponent(t, KindText)
	e.Add(kept)
	e.AddTag("keep")
	e.Destroy()

	if e.Add(mustComponent(t, KindText)) {
		t.Fatalf("add accepted on destroyed entity")
	}
	if e.Remove(kept) {
		t.Fatalf("remove accepted on destroyed entity")
	}
	if e.Pop() != nil || e.Shift() != nil {
		t.Fatalf("pop/shift returned from destroyed entity")
	}
	if e.AddTag("new") || e.RemoveTag("keep") {
		t.Fatalf("tag mutation accepted on destroyed entity")
	}
	if err := e.SetDrawPriority(3); err != nil {
		t.Fatalf("in-range priority on destroyed entity must fail silently, got %v", err)
	}
	if e.DrawPriority() != 0 {
		t.Fatalf("destroyed entity mutated")
	}

	// Attached components stay queryable until native teardown completes.
	if e.Count() != 1 || e.Get(kept.ID()) != kept || !e.HasTag("keep") {
		t.Fatalf("destroyed entity no longer queryable before sweep")
	}

	dir.Sweep()
	if e.Count() != 0 {
		t.Fatalf("components survived teardown")
	}
}

func TestTags(t *testing.T) {
	_, dir := newTestDirectory(t)
	e := dir.Create()

	if !e.AddTag("x") {
		t.Fatalf("first add_tag failed")
	}
	if e.AddTag("x") {
		t.Fatalf("duplicate add_tag accepted")
	}
	if !e.HasTag("x") {
		t.Fatalf("has_tag false after duplicate attempt")
	}
	if e.HasTag("X") {
		t.Fatalf("tag match is not case-sensitive")
	}
	if !e.RemoveTag("x") {
		t.Fatalf("remove_tag failed")
	}
	if e.HasTag("x") {
		t.Fatalf("has_tag true after removal")
	}
	if e.RemoveTag("x") {
		t.Fatalf("second remove_tag reported success")
	}
}

func TestDrawOrder(t *testing.T) {
	_, dir := newTestDirectory(t)
	e := dir.Create()

	if err := e.SetDrawPriority(0); err != nil {
		t.Fatalf("priority 0 rejected: %v", err)
	}
	if err := e.SetDrawPriority(MaxDrawPriority); err != nil {
		t.Fatalf("priority max rejected: %v", err)
	}
	if err := e.SetDrawPriority(MaxDrawPriority + 1); err == nil {
		t.Fatalf("priority max+1 accepted")
	}
	if err := e.SetDrawPriority(-1); err == nil {
		t.Fatalf("negative priority accepted")
	}

	if e.DrawPriority() != MaxDrawPriority {
		t.Fatalf("rejected set clobbered the stored priority")
	}
	if e.DrawOrder()&(1<<drawOrderShift-1) != 0 {
		t.Fatalf("reserved low bits not zero: %#x", e.DrawOrder())
	}
}

func TestWorldBoundsDerived(t *testing.T) {
	_, dir := newTestDirectory(t)
	e := dir.Create()
	e.SetBounds(rectOf(1, 2, 10, 20))
	e.SetPosition(vecOf(100, 200))

	wb := e.WorldBounds()
	if wb.X != 101 || wb.Y != 202 || wb.Width != 10 || wb.Height != 20 {
		t.Fatalf("world bounds = %+v", wb)
	}
}
