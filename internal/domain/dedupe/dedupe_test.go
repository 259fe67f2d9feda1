package dedupe_test

import (
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/triagebooth/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDeduper(t *testing.T) {
	Convey("Given a new deduper", t, func() {
		d := dedupe.New()

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When an id is recorded", func() {
			seen := d.SeenAndRecord("msg-1")

			Convey("Then it is new the first time and seen the second", func() {
				So(seen, ShouldBeFalse)
				So(d.SeenAndRecord("msg-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a recorded id is forgotten", func() {
			d.SeenAndRecord("msg-1")
			d.Forget("msg-1")

			Convey("Then it is accepted again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord("msg-1"), ShouldBeFalse)
			})
		})

		Convey("When forgetting an unknown id", func() {
			d.Forget("nope")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a deduper with room for three ids", t, func() {
		d := dedupe.New(dedupe.WithMaxSize(3))
		for _, id := range []string{"a", "b", "c"} {
			So(d.SeenAndRecord(id), ShouldBeFalse)
		}

		Convey("When a fourth id arrives", func() {
			So(d.SeenAndRecord("d"), ShouldBeFalse)

			Convey("Then the oldest is evicted and the rest are kept", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord("b"), ShouldBeTrue)
				So(d.SeenAndRecord("c"), ShouldBeTrue)
				So(d.SeenAndRecord("d"), ShouldBeTrue)
				So(d.SeenAndRecord("a"), ShouldBeFalse)
			})
		})
	})

	Convey("Given an id forgotten and recorded again before the window fills", t, func() {
		d := dedupe.New(dedupe.WithMaxSize(3))
		d.SeenAndRecord("a")
		d.SeenAndRecord("b")
		d.Forget("a")
		So(d.SeenAndRecord("a"), ShouldBeFalse)

		Convey("When its stale slot is overwritten", func() {
			So(d.SeenAndRecord("c"), ShouldBeFalse)

			Convey("Then the fresh entry is kept", func() {
				So(d.SeenAndRecord("a"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given a non-positive size", t, func() {
		d := dedupe.New(dedupe.WithMaxSize(-5))

		Convey("Then the default window is used", func() {
			for i := 0; i < 100; i++ {
				So(d.SeenAndRecord(fmt.Sprintf("m-%d", i)), ShouldBeFalse)
			}
			So(d.Size(), ShouldEqual, 100)
		})
	})
}

func TestDeduperConcurrency(t *testing.T) {
	Convey("Given a deduper shared by many goroutines", t, func() {
		d := dedupe.New(dedupe.WithMaxSize(2000))
		const workers = 10
		const perWorker = 100

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					d.SeenAndRecord(fmt.Sprintf("%d-%d", w, i))
				}
			}(w)
		}
		wg.Wait()

		Convey("Then every id is recorded once", func() {
			So(d.Size(), ShouldEqual, workers*perWorker)
		})
	})
}
