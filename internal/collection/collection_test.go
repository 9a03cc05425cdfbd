package collection

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"syphon-bridge/pkg/syphon"
)

func server(uuid string) syphon.Description {
	return syphon.Description{UUID: uuid, AppName: "app-" + uuid}
}

func TestNewPreselects(t *testing.T) {
	c := New([]syphon.Description{server("a"), server("b"), server("a")}, 1)
	require.Equal(t, 2, c.Len())
	require.Equal(t, 1, c.SelectedIndex())

	c = New([]syphon.Description{server("a")}, -1)
	require.Equal(t, -1, c.SelectedIndex())
	_, ok := c.Selected()
	require.False(t, ok)
}

func TestDuplicateAddIsNoop(t *testing.T) {
	c := New(nil, -1)
	item, ok := c.Add(server("s1"), false)
	require.True(t, ok)
	require.Equal(t, "s1", item.UUID)

	_, ok = c.Add(server("s1"), true)
	require.False(t, ok)
	require.Equal(t, 1, c.Len())
	require.Equal(t, -1, c.SelectedIndex())
}

func TestAddSelectedMovesSelection(t *testing.T) {
	c := New([]syphon.Description{server("a")}, 0)
	_, ok := c.Add(server("b"), true)
	require.True(t, ok)
	require.Equal(t, 1, c.SelectedIndex())
	require.Equal(t, 1, countSelected(c))
}

func TestUpdatePreservesIdentity(t *testing.T) {
	c := New([]syphon.Description{server("u0"), {UUID: "u1", AppName: "old"}, server("u2")}, 1)

	item, ok := c.Update(syphon.Description{UUID: "u1", AppName: "X"})
	require.True(t, ok)
	require.Equal(t, "X", item.AppName)
	require.True(t, item.Selected)
	require.Equal(t, 1, c.IndexOf("u1"))
	require.Equal(t, 1, c.SelectedIndex())

	_, ok = c.Update(server("missing"))
	require.False(t, ok)
}

func TestRemoveDoesNotReselect(t *testing.T) {
	c := New([]syphon.Description{server("s1"), server("s2")}, 0)
	uuid, ok := c.Remove(server("s1"))
	require.True(t, ok)
	require.Equal(t, "s1", uuid)
	require.Equal(t, -1, c.SelectedIndex())
	require.False(t, c.Has("s1"))

	_, ok = c.Remove(server("s1"))
	require.False(t, ok)
}

func TestSelectVariants(t *testing.T) {
	c := New([]syphon.Description{server("a"), server("b"), server("c")}, -1)

	item, ok := c.Select(ByIndex(1))
	require.True(t, ok)
	require.Equal(t, "b", item.UUID)

	item, ok = c.Select(ByUUID("c"))
	require.True(t, ok)
	require.Equal(t, "c", item.UUID)
	require.Equal(t, 1, countSelected(c))

	item, ok = c.Select(ByDescription(server("a")))
	require.True(t, ok)
	require.Equal(t, "a", item.UUID)

	for _, by := range []SelectBy{ByIndex(3), ByIndex(-1), ByUUID("zzz"), ByDescription(server("zzz")), nil} {
		_, ok = c.Select(by)
		require.False(t, ok)
		require.Equal(t, 0, c.SelectedIndex(), "invalid target must keep the selection")
	}

	_, ok = c.Select(None())
	require.False(t, ok)
	require.Equal(t, -1, c.SelectedIndex())
}

func TestUnselectByIndex(t *testing.T) {
	c := New([]syphon.Description{server("a"), server("b")}, 1)
	c.Unselect(0)
	require.Equal(t, 1, c.SelectedIndex())
	c.Unselect(5)
	require.Equal(t, 1, c.SelectedIndex())
	c.Unselect(1)
	require.Equal(t, -1, c.SelectedIndex())
}

func TestFindAndLookup(t *testing.T) {
	c := New([]syphon.Description{server("a"), {UUID: "b", AppName: "VDMX", Name: "Out"}}, -1)

	item, ok := c.Find(func(_ int, item Item) bool { return item.AppName == "VDMX" })
	require.True(t, ok)
	require.Equal(t, "b", item.UUID)

	_, ok = c.WithUUID("nope")
	require.False(t, ok)
	item, ok = c.At(0)
	require.True(t, ok)
	require.Equal(t, "a", item.UUID)
	_, ok = c.At(2)
	require.False(t, ok)

	c.Clear()
	require.Zero(t, c.Len())
}

func TestAllIteratesSnapshot(t *testing.T) {
	c := New([]syphon.Description{server("a"), server("b")}, 0)

	var seen []string
	for i, item := range c.All() {
		seen = append(seen, item.UUID)
		if i == 0 {
			c.Add(server("c"), false)
			c.Remove(server("b"))
		}
	}
	require.Equal(t, []string{"a", "b"}, seen)

	want := []Item{
		{Description: server("a"), Selected: true},
		{Description: server("c")},
	}
	if diff := cmp.Diff(want, c.Items()); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}

	// Restartable.
	n := 0
	for range c.All() {
		n++
	}
	require.Equal(t, 2, n)
}

func TestInvariantsUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	c := New(nil, -1)

	for step := 0; step < 5000; step++ {
		d := server(fmt.Sprintf("s%d", rng.IntN(12)))
		switch rng.IntN(7) {
		case 0:
			c.Add(d, rng.IntN(2) == 0)
		case 1:
			c.Remove(d)
		case 2:
			d.Name = fmt.Sprintf("n%d", step)
			c.Update(d)
		case 3:
			c.Select(ByIndex(rng.IntN(14) - 1))
		case 4:
			c.Select(ByUUID(d.UUID))
		case 5:
			c.Unselect(rng.IntN(14) - 1)
		case 6:
			if rng.IntN(10) == 0 {
				c.Select(None())
			}
		}

		require.LessOrEqual(t, countSelected(c), 1, "step %d", step)
		seen := make(map[string]bool)
		for _, item := range c.Items() {
			require.False(t, seen[item.UUID], "duplicate %s at step %d", item.UUID, step)
			seen[item.UUID] = true
		}
	}
}

func countSelected(c *Collection) int {
	n := 0
	for _, item := range c.All() {
		if item.Selected {
			n++
		}
	}
	return n
}
