package entity

import (
	"fmt"
	"testing"
)

func TestDirectoryLookups(t *testing.T) {
	_, dir := newTestDirectory(t)

	a := dir.Create()
	b := dir.Create()
	c := dir.Create()
	a.AddTag("enemy")
	c.AddTag("enemy")
	b.AddTag("player")

	if dir.Count() != 3 {
		t.Fatalf("count = %d, want 3", dir.Count())
	}
	if dir.FindByID(b.ID()) != b {
		t.Fatalf("find_by_id missed a live entity")
	}
	if dir.FindByID(12345) != nil {
		t.Fatalf("find_by_id miss must be nil")
	}

	enemies := dir.FindByTag("enemy")
	if len(enemies) != 2 || enemies[0] != a || enemies[1] != c {
		t.Fatalf("find_by_tag = %v, want [a c] in creation order", enemies)
	}
	if dir.FindFirstByTag("enemy") != a {
		t.Fatalf("find_first_by_tag did not return the oldest match")
	}
	if dir.FindFirstByTag("boss") != nil {
		t.Fatalf("find_first_by_tag miss must be nil")
	}

	a.RemoveTag("enemy")
	if got := dir.FindByTag("enemy"); len(got) != 1 || got[0] != c {
		t.Fatalf("tag index not updated on remove_tag: %v", got)
	}
}

func TestDeferredDestroySweep(t *testing.T) {
	_, dir := newTestDirectory(t)
	e := dir.Create()
	e.AddTag("enemy")
	dir.Subscribe(e, "dmg", "on_dmg")

	e.Destroy()
	if !e.Destroyed() {
		t.Fatalf("destroyed flag not set")
	}
	// Until the sweep the entity is still registered but excluded from
	// script-facing lookups.
	if dir.Count() != 0 {
		t.Fatalf("destroyed entity still counted")
	}
	if dir.FindFirstByTag("enemy") != nil {
		t.Fatalf("destroyed entity still found by tag")
	}

	dir.Sweep()
	if dir.FindByID(e.ID()) != nil {
		t.Fatalf("entity survived the sweep")
	}
	if len(dir.topics) != 0 {
		t.Fatalf("topic table still references the destroyed entity")
	}

	// Destroy after destroy is idempotent.
	e.Destroy()
	dir.Sweep()
}

func TestUpdateOrderAndMidTickRemoval(t *testing.T) {
	_, dir := newTestDirectory(t)
	e := dir.Create()

	var visited []string
	mk := func(name string, onUpdate func(c *Component)) *Component {
		return &Component{
			id:     nextComponentID(),
			active: true,
			payload: &probePayload{kind: Kind(name), onUpdate: func(c *Component) {
				visited = append(visited, name)
				if onUpdate != nil {
					onUpdate(c)
				}
			}},
		}
	}

	var second *Component
	first := mk("first", func(c *Component) {
		// Removing a later component mid-dispatch: it must not be visited.
		c.Owner().Remove(second)
	})
	second = mk("second", nil)
	third := mk("third", nil)

	e.Add(first)
	e.Add(second)
	e.Add(third)

	dir.Update(1.0 / 60)
	if len(visited) != 2 || visited[0] != "first" || visited[1] != "third" {
		t.Fatalf("visited = %v, want [first third]", visited)
	}

	// A component added mid-dispatch waits for the next tick.
	visited = nil
	var added *Component
	adder := mk("adder", func(c *Component) {
		added = mk("late", nil)
		c.Owner().Add(added)
	})
	e.Add(adder)
	dir.Update(1.0 / 60)
	for _, name := range visited {
		if name == "late" {
			t.Fatalf("component added mid-tick was visited same tick")
		}
	}
	visited = nil
	dir.Update(1.0 / 60)
	found := false
	for _, name := range visited {
		if name == "late" {
			found = true
		}
	}
	if !found {
		t.Fatalf("component added last tick not visited this tick")
	}
}

func TestDestroyMidTickShortCircuits(t *testing.T) {
	_, dir := newTestDirectory(t)
	e := dir.Create()

	var visited int
	bomb := &Component{id: nextComponentID(), active: true, payload: &probePayload{
		kind: "bomb",
		onUpdate: func(c *Component) {
			visited++
			c.Owner().Destroy()
		},
	}}
	after := &Component{id: nextComponentID(), active: true, payload: &probePayload{
		kind: "after",
		onUpdate: func(c *Component) {
			visited++
		},
	}}
	e.Add(bomb)
	e.Add(after)

	dir.Update(1.0 / 60)
	if visited != 1 {
		t.Fatalf("update continued past mid-tick destroy: visited = %d", visited)
	}
	dir.Sweep()
}

func TestInactiveSkipped(t *testing.T) {
	_, dir := newTestDirectory(t)
	e := dir.Create()

	updates := 0
	c := &Component{id: nextComponentID(), active: true, payload: &probePayload{kind: "p", updates: &updates}}
	e.Add(c)

	e.SetActive(false)
	dir.Update(1.0 / 60)
	if updates != 0 {
		t.Fatalf("inactive entity updated")
	}

	e.SetActive(true)
	c.SetActive(false)
	dir.Update(1.0 / 60)
	if updates != 0 {
		t.Fatalf("inactive component updated")
	}

	c.SetActive(true)
	dir.Update(1.0 / 60)
	if updates != 1 {
		t.Fatalf("active component not updated")
	}
}

func TestByDrawOrder(t *testing.T) {
	_, dir := newTestDirectory(t)
	back := dir.Create()
	front := dir.Create()
	mid := dir.Create()

	if err := back.SetDrawPriority(0); err != nil {
		t.Fatal(err)
	}
	if err := front.SetDrawPriority(10); err != nil {
		t.Fatal(err)
	}
	if err := mid.SetDrawPriority(5); err != nil {
		t.Fatal(err)
	}
	tieA := dir.Create()
	tieB := dir.Create()
	if err := tieA.SetDrawPriority(5); err != nil {
		t.Fatal(err)
	}
	if err := tieB.SetDrawPriority(5); err != nil {
		t.Fatal(err)
	}

	got := dir.ByDrawOrder()
	want := []*Entity{back, mid, tieA, tieB, front}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order[%d] = entity %d, want entity %d", i, got[i].ID(), want[i].ID())
		}
	}
}

func TestClearTransient(t *testing.T) {
	_, dir := newTestDirectory(t)
	keeper := dir.Create()
	keeper.SetPersistent(true)
	dir.Create()
	dir.Create()

	dir.ClearTransient()
	if dir.Count() != 1 {
		t.Fatalf("count = %d after clear, want 1", dir.Count())
	}
	if dir.FindByID(keeper.ID()) != keeper {
		t.Fatalf("persistent entity did not survive")
	}
}

func TestReloadScriptRebinds(t *testing.T) {
	_, dir := newTestDirectory(t)
	sources := map[string]string{
		"ping.tengo": `handlers.ping = func() { return "v1" }`,
	}
	dir.SetScriptLoader(func(name string) ([]byte, error) {
		src, ok := sources[name]
		if !ok {
			return nil, fmt.Errorf("no script %s", name)
		}
		return []byte(src), nil
	})

	e := dir.Create()
	other := dir.Create()
	if err := dir.BindBehaviorFile(e, "ping.tengo"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := other.BindBehavior("other.tengo", []byte(`handlers.ping = func() { return "other" }`)); err != nil {
		t.Fatalf("bind other: %v", err)
	}

	sources["ping.tengo"] = `handlers.ping = func() { return "v2" }`
	if err := dir.ReloadScript("ping.tengo"); err != nil {
		t.Fatalf("reload: %v", err)
	}

	_, ret, err := e.Dispatch("ping")
	if err != nil || ret != "v2" {
		t.Fatalf("after reload ret=%v err=%v, want v2", ret, err)
	}
	// Entities on a different script are untouched.
	_, ret, err = other.Dispatch("ping")
	if err != nil || ret != "other" {
		t.Fatalf("unrelated behavior rebound: ret=%v err=%v", ret, err)
	}

	if err := dir.ReloadScript("gone.tengo"); err == nil {
		t.Fatalf("reload of unknown script must fail")
	}
}

func TestVelocityAndTimerKinds(t *testing.T) {
	_, dir := newTestDirectory(t)
	e := dir.Create()

	vel := mustComponent(t, KindVelocity)
	vp := vel.Payload().(*VelocityPayload)
	vp.DX, vp.DY = 60, -30
	e.Add(vel)

	dir.Update(1.0 / 60)
	pos := e.Position()
	if pos.X != 1 || pos.Y != -0.5 {
		t.Fatalf("position after one tick = %+v", pos)
	}
}
