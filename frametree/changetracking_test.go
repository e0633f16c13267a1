package frametree

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"
)

func collectChanges(t *testing.T, ch <-chan Change, n int) []Change {
	t.Helper()
	out := make([]Change, 0, n)
	for len(out) < n {
		select {
		case c, ok := <-ch:
			if !ok {
				t.Fatalf("change stream closed after %d of %d changes", len(out), n)
			}
			out = append(out, c)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d changes", len(out), n)
		}
	}
	return out
}

func createdNames(changes []Change) []string {
	var out []string
	for _, c := range changes {
		if created, ok := c.(Created); ok {
			out = append(out, created.Frame.Name())
		}
	}
	return out
}

func TestSubscribeReplaysForest(t *testing.T) {
	tracking := NewChangeTracking(NewCopyOnWriteTree(testRoot))
	defer tracking.Close()
	test.That(t, tracking.CreateRoot("a"), test.ShouldBeNil)
	test.That(t, tracking.Create("a", "b", offset(1, 0, 0)), test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := tracking.Subscribe(ctx)

	seed := collectChanges(t, ch, 3)
	test.That(t, createdNames(seed), test.ShouldResemble, []string{testRoot, "a", "b"})

	// Live changes follow the replay in commit order.
	test.That(t, tracking.Create("a", "c", offset(2, 0, 0)), test.ShouldBeNil)
	live := collectChanges(t, ch, 1)
	test.That(t, createdNames(live), test.ShouldResemble, []string{"c"})
}

func TestUpdateEmitsCreatedPerAffectedFrame(t *testing.T) {
	tracking := NewChangeTracking(NewCopyOnWriteTree(testRoot))
	defer tracking.Close()
	test.That(t, tracking.CreateRoot("a"), test.ShouldBeNil)
	test.That(t, tracking.Create("a", "b", offset(1, 0, 0)), test.ShouldBeNil)
	test.That(t, tracking.Create("b", "c", offset(1, 0, 0)), test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := tracking.Subscribe(ctx)
	collectChanges(t, ch, 4)

	// Rewriting a's transform notifies a and both descendants, pre-order.
	test.That(t, tracking.Create(testRoot, "a", offset(9, 9, 9)), test.ShouldBeNil)
	live := collectChanges(t, ch, 3)
	test.That(t, createdNames(live), test.ShouldResemble, []string{"a", "b", "c"})
}

func TestRemoveEmitsSingleRemoved(t *testing.T) {
	tracking := NewChangeTracking(NewCopyOnWriteTree(testRoot))
	defer tracking.Close()
	test.That(t, tracking.CreateRoot("a"), test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := tracking.Subscribe(ctx)
	collectChanges(t, ch, 2)

	test.That(t, tracking.Remove("a"), test.ShouldBeNil)
	live := collectChanges(t, ch, 1)
	removed, ok := live[0].(Removed)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, removed.Name, test.ShouldEqual, "a")

	// Removing an absent frame publishes nothing; the next event is the
	// following create.
	test.That(t, tracking.Remove("a"), test.ShouldBeNil)
	test.That(t, tracking.CreateRoot("z"), test.ShouldBeNil)
	live = collectChanges(t, ch, 1)
	test.That(t, createdNames(live), test.ShouldResemble, []string{"z"})
}

func TestCreateRootNoOpPublishesNothing(t *testing.T) {
	tracking := NewChangeTracking(NewCopyOnWriteTree(testRoot))
	defer tracking.Close()
	test.That(t, tracking.CreateRoot("a"), test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := tracking.Subscribe(ctx)
	collectChanges(t, ch, 2)

	test.That(t, tracking.CreateRoot("a"), test.ShouldBeNil)
	test.That(t, tracking.CreateRoot("b"), test.ShouldBeNil)
	live := collectChanges(t, ch, 1)
	test.That(t, createdNames(live), test.ShouldResemble, []string{"b"})
}

func TestSubscriberCancel(t *testing.T) {
	tracking := NewChangeTracking(NewCopyOnWriteTree(testRoot))
	defer tracking.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := tracking.Subscribe(ctx)
	collectChanges(t, ch, 1)
	cancel()

	// The stream closes and later writes still succeed.
	for {
		if _, ok := <-ch; !ok {
			break
		}
	}
	test.That(t, tracking.CreateRoot("a"), test.ShouldBeNil)
}

func TestCloseCompletesSubscribers(t *testing.T) {
	tracking := NewChangeTracking(NewCopyOnWriteTree(testRoot))
	test.That(t, tracking.CreateRoot("a"), test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := tracking.Subscribe(ctx)
	tracking.Close()

	// Pending events drain before the stream completes.
	seed := collectChanges(t, ch, 2)
	test.That(t, createdNames(seed), test.ShouldResemble, []string{testRoot, "a"})
	_, ok := <-ch
	test.That(t, ok, test.ShouldBeFalse)
}
