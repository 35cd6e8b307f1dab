package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/patella/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a request is claimed for the first time", func() {
			id, dup := d.Claim(ctx, "req-1", "diag-1")

			Convey("Then it is bound to the new diagnosis", func() {
				So(dup, ShouldBeFalse)
				So(id, ShouldEqual, "diag-1")
				So(d.Size(), ShouldEqual, 1)

				bound, ok := d.Lookup(ctx, "req-1")
				So(ok, ShouldBeTrue)
				So(bound, ShouldEqual, "diag-1")
			})
		})

		Convey("When the same request is claimed again", func() {
			d.Claim(ctx, "req-1", "diag-1")
			id, dup := d.Claim(ctx, "req-1", "diag-2")

			Convey("Then the original diagnosis is returned", func() {
				So(dup, ShouldBeTrue)
				So(id, ShouldEqual, "diag-1")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a claim is released", func() {
			d.Claim(ctx, "req-1", "diag-1")
			d.Release(ctx, "req-1")
			d.Release(ctx, "unknown")

			Convey("Then the request can be claimed again", func() {
				So(d.Size(), ShouldEqual, 0)
				_, ok := d.Lookup(ctx, "req-1")
				So(ok, ShouldBeFalse)

				id, dup := d.Claim(ctx, "req-1", "diag-3")
				So(dup, ShouldBeFalse)
				So(id, ShouldEqual, "diag-3")
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 0; i < 5; i++ {
			d.Claim(ctx, fmt.Sprintf("req-%d", i), fmt.Sprintf("diag-%d", i))
		}

		Convey("Then the oldest claims are forgotten first", func() {
			So(d.Size(), ShouldEqual, 3)
			for _, gone := range []string{"req-0", "req-1"} {
				_, ok := d.Lookup(ctx, gone)
				So(ok, ShouldBeFalse)
			}
			for _, kept := range []string{"req-2", "req-3", "req-4"} {
				_, ok := d.Lookup(ctx, kept)
				So(ok, ShouldBeTrue)
			}
		})

		Convey("Then releasing from the middle keeps the order intact", func() {
			d.Release(ctx, "req-3")
			d.Claim(ctx, "req-5", "diag-5")
			d.Claim(ctx, "req-6", "diag-6")
			So(d.Size(), ShouldEqual, 3)
			_, ok := d.Lookup(ctx, "req-2")
			So(ok, ShouldBeFalse)
			_, ok = d.Lookup(ctx, "req-4")
			So(ok, ShouldBeTrue)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.Claim(ctx, fmt.Sprintf("req-%d", i), "x")
		}
		So(d.Size(), ShouldEqual, 1000)
	})
}

func TestInMemoryDeduperConcurrency(t *testing.T) {
	Convey("Given concurrent claims of the same request", t, func() {
		d := dedupe.NewInMemoryDeduper()
		ctx := context.Background()

		var fresh atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, dup := d.Claim(ctx, "req", fmt.Sprintf("diag-%d", i)); !dup {
					fresh.Add(1)
				}
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one claim wins", func() {
			So(fresh.Load(), ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})
}
