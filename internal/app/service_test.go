package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/triagebooth/internal/adapters/repository"
	service "github.com/okian/triagebooth/internal/app"
	"github.com/okian/triagebooth/internal/domain/catalog"
	"github.com/okian/triagebooth/internal/domain/model"
	"github.com/okian/triagebooth/internal/domain/scoring"
	"github.com/okian/triagebooth/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// recorder is a Publisher that keeps every published envelope.
type recorder struct {
	mu   sync.Mutex
	envs []types.Envelope
}

func (r *recorder) Publish(_ context.Context, msg []byte) int {
	env, err := types.Decode(msg)
	if err != nil {
		panic(err)
	}
	r.mu.Lock()
	r.envs = append(r.envs, env)
	r.mu.Unlock()
	return 1
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.envs))
	for i, e := range r.envs {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (r *recorder) last(kind string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.envs) - 1; i >= 0; i-- {
		if r.envs[i].Type == kind {
			if err := json.Unmarshal(r.envs[i].Data, v); err != nil {
				panic(err)
			}
			return
		}
	}
	panic("no " + kind + " published")
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.envs = nil
	r.mu.Unlock()
}

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newEngine(opts ...service.Option) (*service.Service, *recorder, *clockwork.FakeClock) {
	cat, err := catalog.Default()
	if err != nil {
		panic(err)
	}
	rec := &recorder{}
	clock := clockwork.NewFakeClockAt(start)
	opts = append([]service.Option{service.WithClock(clock), service.WithPublisher(rec)}, opts...)
	return service.New(cat, opts...), rec, clock
}

func scanAll(ctx context.Context, svc *service.Service) {
	for _, k := range model.VitalKeys() {
		if _, err := svc.Scan(ctx, string(k)); err != nil {
			panic(err)
		}
	}
}

var hajjAnswer = model.Decision{
	Triage:     model.TriageRed,
	HospitalID: "mina",
	TestIDs:    []string{"fast", "lactate", "crossmatch"},
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new engine", t, func() {
		svc, _, _ := newEngine()
		ctx := context.Background()

		Convey("When starting and stopping it", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			started := svc.GetStats()["started"]
			svc.Stop()
			svc.Stop()

			Convey("Then the stats follow the lifecycle", func() {
				So(started, ShouldEqual, true)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_StartSession(t *testing.T) {
	Convey("Given an engine", t, func() {
		svc, rec, clock := newEngine()
		ctx := context.Background()

		Convey("When a session starts for a known scenario", func() {
			s, err := svc.StartSession(ctx, "  Dana ", "group", "s1")
			So(err, ShouldBeNil)

			Convey("Then the session is fresh and announced", func() {
				So(s.ID, ShouldEqual, start.UnixMilli())
				So(s.OperatorName, ShouldEqual, "Dana")
				So(s.OperatorMode, ShouldEqual, model.ModeGroup)
				So(s.ScenarioID, ShouldEqual, "s1")
				So(s.Revealed, ShouldBeEmpty)
				So(s.AllCollected, ShouldBeFalse)
				So(s.DecisionStartedAt, ShouldBeNil)
				So(rec.kinds(), ShouldResemble, []string{types.TypeGameRegistered, types.TypeStateUpdate})
			})

			Convey("And another session starts in the same millisecond", func() {
				_, _ = svc.Scan(ctx, "head")
				s2, err := svc.StartSession(ctx, "", "", "s2")

				Convey("Then it replaces the first with a new id and keeps the operator", func() {
					So(err, ShouldBeNil)
					So(s2.ID, ShouldEqual, s.ID+1)
					So(s2.OperatorName, ShouldEqual, "Dana")
					So(s2.Revealed, ShouldBeEmpty)
					So(svc.Snapshot(ctx).Session.ScenarioID, ShouldEqual, "s2")
				})
			})

			Convey("And the clock moves on before the next start", func() {
				clock.Advance(time.Second)
				s2, _ := svc.StartSession(ctx, "", "", "s1")

				Convey("Then the id is the new creation time", func() {
					So(s2.ID, ShouldEqual, start.Add(time.Second).UnixMilli())
				})
			})
		})

		Convey("When the scenario is unknown", func() {
			_, _ = svc.StartSession(ctx, "A", "solo", "s1")
			rec.reset()
			_, err := svc.StartSession(ctx, "B", "solo", "s9")

			Convey("Then the error goes to the requester and the session is untouched", func() {
				So(errors.Is(err, service.ErrScenarioNotFound), ShouldBeTrue)
				So(svc.Snapshot(ctx).Session.OperatorName, ShouldEqual, "A")
				So(rec.kinds(), ShouldBeEmpty)
			})
		})

		Convey("When no operator was ever given", func() {
			s, _ := svc.StartSession(ctx, "", "", "s3")

			Convey("Then the visitor default is used", func() {
				So(s.OperatorName, ShouldEqual, model.DefaultOperatorName)
				So(s.OperatorMode, ShouldEqual, model.ModeSolo)
			})
		})
	})
}

func TestService_Scan(t *testing.T) {
	Convey("Given an engine", t, func() {
		svc, rec, _ := newEngine(service.WithTimerSeconds(45))
		ctx := context.Background()

		Convey("When scanning with no session", func() {
			_, err := svc.Scan(ctx, "head")

			Convey("Then it fails with no active session", func() {
				So(errors.Is(err, service.ErrNoActiveSession), ShouldBeTrue)
				So(rec.kinds(), ShouldBeEmpty)
			})
		})

		Convey("When a session is active", func() {
			_, _ = svc.StartSession(ctx, "Dana", "solo", "s1")
			rec.reset()

			Convey("And a tag file name is scanned", func() {
				v, err := svc.Scan(ctx, "https://booth/tags/s1_arms.png")

				Convey("Then the vital is revealed and broadcast", func() {
					So(err, ShouldBeNil)
					So(v.Key, ShouldEqual, model.VitalArms)
					So(v.Value, ShouldEqual, "78/45 mmHg")
					So(v.Count, ShouldEqual, 1)
					So(v.Total, ShouldEqual, 5)
					So(rec.kinds(), ShouldResemble, []string{types.TypeVitalScanned, types.TypeStateUpdate})

					var got types.VitalScannedPayload
					rec.last(types.TypeVitalScanned, &got)
					So(got, ShouldResemble, v)
				})
			})

			Convey("And the same vital is scanned twice", func() {
				_, _ = svc.Scan(ctx, "head")
				before := svc.Snapshot(ctx).Session.Revealed
				rec.reset()
				_, err := svc.Scan(ctx, "s2_head.jpg")

				Convey("Then state is unchanged and the scanner is told", func() {
					So(errors.Is(err, service.ErrAlreadyScanned), ShouldBeTrue)
					text, code := service.Describe(err)
					So(text, ShouldEqual, "Head tag already received. (1/5 vitals)")
					So(code, ShouldEqual, types.CodeAlreadyScanned)
					So(svc.Snapshot(ctx).Session.Revealed, ShouldResemble, before)
					So(rec.kinds(), ShouldBeEmpty)
				})
			})

			Convey("And an unrecognisable payload is scanned", func() {
				_, err := svc.Scan(ctx, "s1_knee.jpg")

				Convey("Then it is rejected with the not recognised text", func() {
					So(errors.Is(err, service.ErrUnknownVital), ShouldBeTrue)
					text, code := service.Describe(err)
					So(text, ShouldContainSubstring, "not recognised")
					So(code, ShouldEqual, types.CodeUnknownVital)
					So(svc.Snapshot(ctx).Session.Revealed, ShouldBeEmpty)
				})
			})

			Convey("And every vital is scanned", func() {
				scanAll(ctx, svc)
				s := svc.Snapshot(ctx).Session

				Convey("Then the decision phase unlocks exactly once", func() {
					So(s.AllCollected, ShouldBeTrue)
					So(s.DecisionStartedAt.Equal(start), ShouldBeTrue)
					So(rec.count(types.TypeAllVitalsCollected), ShouldEqual, 1)

					var unlocked types.AllVitalsCollectedPayload
					rec.last(types.TypeAllVitalsCollected, &unlocked)
					So(unlocked.TimerSeconds, ShouldEqual, 45)

					kinds := rec.kinds()
					So(kinds[len(kinds)-3:], ShouldResemble, []string{
						types.TypeVitalScanned, types.TypeAllVitalsCollected, types.TypeStateUpdate,
					})
				})

				Convey("And a completing vital is scanned again", func() {
					_, err := svc.Scan(ctx, "legs")

					Convey("Then nothing is re-unlocked or re-stamped", func() {
						So(errors.Is(err, service.ErrAlreadyScanned), ShouldBeTrue)
						So(rec.count(types.TypeAllVitalsCollected), ShouldEqual, 1)
						So(svc.Snapshot(ctx).Session.DecisionStartedAt.Equal(start), ShouldBeTrue)
						So(svc.Snapshot(ctx).Session.Revealed, ShouldHaveLength, 5)
					})
				})
			})
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given an engine with a session for the Hajj stampede", t, func() {
		svc, rec, clock := newEngine()
		ctx := context.Background()
		_, _ = svc.StartSession(ctx, "Dana", "solo", "s1")

		Convey("When a decision arrives before all vitals", func() {
			_, _ = svc.Scan(ctx, "head")
			rec.reset()
			res, ok := svc.Submit(ctx, hajjAnswer)

			Convey("Then it is ignored silently", func() {
				So(ok, ShouldBeFalse)
				So(res, ShouldBeNil)
				So(svc.Leaderboard(ctx), ShouldBeEmpty)
				So(rec.kinds(), ShouldBeEmpty)
			})
		})

		Convey("When the full answer arrives 0.9s after unlock", func() {
			scanAll(ctx, svc)
			clock.Advance(900 * time.Millisecond)
			rec.reset()
			res, ok := svc.Submit(ctx, hajjAnswer)

			Convey("Then it scores 12 and leads the leaderboard", func() {
				So(ok, ShouldBeTrue)
				So(res.Score, ShouldEqual, 12)
				So(res.ElapsedSeconds, ShouldEqual, 0.9)
				So(res.Rank, ShouldEqual, 1)
				So(res.ID, ShouldNotBeEmpty)
				So(res.Breakdown.FasterThanAI, ShouldBeTrue)

				board := svc.Leaderboard(ctx)
				So(board, ShouldHaveLength, 1)
				So(board[0].DisplayName, ShouldEqual, "Dana (Solo)")
				So(board[0].ScenarioName, ShouldEqual, "Hajj Stampede")

				So(rec.kinds(), ShouldResemble, []string{types.TypeResultsReady, types.TypeStateUpdate})
				var ready types.ResultsReadyPayload
				rec.last(types.TypeResultsReady, &ready)
				So(ready.Result.Score, ShouldEqual, 12)
				So(ready.Leaderboard, ShouldHaveLength, 1)
			})

			Convey("And a second decision arrives", func() {
				_, again := svc.Submit(ctx, model.Decision{Triage: model.TriageBlack})

				Convey("Then it is ignored and the result stands", func() {
					So(again, ShouldBeFalse)
					So(svc.Leaderboard(ctx), ShouldHaveLength, 1)
					So(svc.Snapshot(ctx).Session.Result.Score, ShouldEqual, 12)
				})
			})
		})

		Convey("When a test is missing", func() {
			scanAll(ctx, svc)
			res, _ := svc.Submit(ctx, model.Decision{
				Triage:     model.TriageRed,
				HospitalID: "mina",
				TestIDs:    []string{"fast", "lactate"},
			})

			Convey("Then the tests component is zero", func() {
				So(res.Breakdown.TestsPoints, ShouldEqual, 0)
				So(res.Score, ShouldEqual, 9)
			})
		})

		Convey("When the clock moves backwards", func() {
			svc2, _, _ := newEngine(service.WithClock(&rewindClock{FakeClock: clockwork.NewFakeClockAt(start)}))
			_, _ = svc2.StartSession(ctx, "", "", "s1")
			scanAll(ctx, svc2)
			res, ok := svc2.Submit(ctx, hajjAnswer)

			Convey("Then elapsed is clamped at zero", func() {
				So(ok, ShouldBeTrue)
				So(res.ElapsedSeconds, ShouldEqual, 0)
			})
		})

		Convey("When the under-budget bonus is enabled", func() {
			svc3, _, clock3 := newEngine(service.WithScoring(scoring.WithUnderBudget(2, 30*time.Second)))
			_, _ = svc3.StartSession(ctx, "", "", "s1")
			scanAll(ctx, svc3)
			clock3.Advance(10 * time.Second)
			res, _ := svc3.Submit(ctx, hajjAnswer)

			Convey("Then a slower but in-budget answer earns it", func() {
				So(res.Breakdown.UnderBudget, ShouldBeTrue)
				So(res.Score, ShouldEqual, 5+3+3+2)
			})
		})
	})

	Convey("Given an engine with no session", t, func() {
		svc, _, _ := newEngine()

		Convey("Then a decision is ignored", func() {
			_, ok := svc.Submit(context.Background(), hajjAnswer)
			So(ok, ShouldBeFalse)
			So(svc.GetStats()["ignoredDecisions"], ShouldEqual, int64(1))
		})
	})
}

// rewindClock reports a time earlier than the previous reading on every call.
type rewindClock struct {
	*clockwork.FakeClock
	calls int
}

func (c *rewindClock) Now() time.Time {
	c.calls++
	return start.Add(-time.Duration(c.calls) * time.Second)
}

func TestService_Resets(t *testing.T) {
	Convey("Given an engine with a decided session on the leaderboard", t, func() {
		svc, rec, _ := newEngine()
		ctx := context.Background()
		_, _ = svc.StartSession(ctx, "Dana", "solo", "s1")
		scanAll(ctx, svc)
		_, _ = svc.Submit(ctx, hajjAnswer)

		Convey("When the game is reset", func() {
			rec.reset()
			svc.Reset(ctx)

			Convey("Then the session is gone, scans fail and the leaderboard stays", func() {
				So(svc.Snapshot(ctx).Session, ShouldBeNil)
				So(svc.Leaderboard(ctx), ShouldHaveLength, 1)
				So(rec.kinds(), ShouldResemble, []string{types.TypeStateUpdate})

				_, err := svc.Scan(ctx, "head")
				So(errors.Is(err, service.ErrNoActiveSession), ShouldBeTrue)
			})
		})

		Convey("When the leaderboard is reset mid-session", func() {
			_, _ = svc.StartSession(ctx, "Omar", "group", "s2")
			_, _ = svc.Scan(ctx, "head")
			_, _ = svc.Scan(ctx, "chest")
			svc.ResetLeaderboard(ctx)

			Convey("Then the leaderboard empties and the session keeps its vitals", func() {
				So(svc.Leaderboard(ctx), ShouldBeEmpty)
				s := svc.Snapshot(ctx).Session
				So(s.ScenarioID, ShouldEqual, "s2")
				So(s.Revealed, ShouldResemble, []model.VitalKey{model.VitalHead, model.VitalChest})
			})
		})
	})
}

func TestService_Leaderboard(t *testing.T) {
	Convey("Given many decided sessions", t, func() {
		svc, _, clock := newEngine()
		ctx := context.Background()

		answers := []model.Decision{
			hajjAnswer,
			{Triage: model.TriageRed},
			{Triage: model.TriageGreen},
			{Triage: model.TriageRed, HospitalID: "mina"},
		}
		for i := 0; i < 30; i++ {
			_, _ = svc.StartSession(ctx, "", "", "s1")
			scanAll(ctx, svc)
			clock.Advance(time.Duration(i%7) * 100 * time.Millisecond)
			_, ok := svc.Submit(ctx, answers[i%len(answers)])
			So(ok, ShouldBeTrue)
		}

		board := svc.Leaderboard(ctx)

		Convey("Then it is bounded to 20 and sorted by score then time", func() {
			So(board, ShouldHaveLength, 20)
			for i := 1; i < len(board); i++ {
				a, b := board[i-1], board[i]
				So(a.Score > b.Score || (a.Score == b.Score && a.ElapsedSeconds <= b.ElapsedSeconds), ShouldBeTrue)
				So(b.Rank, ShouldEqual, i+1)
			}
		})
	})

	Convey("Given a smaller configured leaderboard", t, func() {
		svc, _, _ := newEngine(service.WithLeaderboardSize(3))
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			_, _ = svc.StartSession(ctx, "", "", "s4")
			scanAll(ctx, svc)
			_, _ = svc.Submit(ctx, model.Decision{})
		}

		Convey("Then it is bounded to that size", func() {
			So(svc.Leaderboard(ctx), ShouldHaveLength, 3)
		})

		Convey("Then the top rows are the head of the board", func() {
			top, err := svc.TopLeaderboard(ctx, 2)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 2)
			So(top[0], ShouldResemble, svc.Leaderboard(ctx)[0])
			So(top[1].Rank, ShouldEqual, 2)

			all, err := svc.TopLeaderboard(ctx, 50)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 3)
		})

		Convey("Then a non-positive count is refused", func() {
			_, err := svc.TopLeaderboard(ctx, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})
	})
}

func TestService_SetOperator(t *testing.T) {
	Convey("Given an engine", t, func() {
		svc, rec, _ := newEngine()
		ctx := context.Background()

		Convey("When the operator is set with no session", func() {
			op := svc.SetOperator(ctx, "", "crowd")

			Convey("Then it is normalized and nothing is broadcast", func() {
				So(op.Name, ShouldEqual, model.DefaultOperatorName)
				So(op.Mode, ShouldEqual, model.ModeSolo)
				So(rec.kinds(), ShouldBeEmpty)
			})
		})

		Convey("When the operator is set during an undecided session", func() {
			_, _ = svc.StartSession(ctx, "", "", "s1")
			svc.SetOperator(ctx, "Ward 3", "group")

			Convey("Then the session and later results use it", func() {
				s := svc.Snapshot(ctx).Session
				So(s.OperatorName, ShouldEqual, "Ward 3")
				So(s.OperatorMode, ShouldEqual, model.ModeGroup)

				scanAll(ctx, svc)
				res, _ := svc.Submit(ctx, hajjAnswer)
				So(res.Operator.Name, ShouldEqual, "Ward 3")
				So(svc.Leaderboard(ctx)[0].DisplayName, ShouldEqual, "Ward 3 (Group)")
			})
		})
	})
}

func TestService_Sync(t *testing.T) {
	Convey("Given an engine mid-session", t, func() {
		svc, _, _ := newEngine()
		ctx := context.Background()
		_, _ = svc.StartSession(ctx, "Dana", "solo", "s1")
		_, _ = svc.Scan(ctx, "head")

		Convey("When a client syncs", func() {
			var got []byte
			err := svc.Sync(ctx, func(msg []byte) error {
				got = msg
				return nil
			})

			Convey("Then it receives a full stateUpdate", func() {
				So(err, ShouldBeNil)
				env, err := types.Decode(got)
				So(err, ShouldBeNil)
				So(env.Type, ShouldEqual, types.TypeStateUpdate)

				var state types.StatePayload
				So(env.Bind(&state), ShouldBeNil)
				So(state.Session.Revealed, ShouldResemble, []model.VitalKey{model.VitalHead})
				So(state.Scenarios, ShouldHaveLength, 4)
				So(state.TimerSeconds, ShouldEqual, 60)
			})
		})

		Convey("When delivery fails", func() {
			boom := errors.New("gone")
			err := svc.Sync(ctx, func([]byte) error { return boom })

			Convey("Then the error is returned", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
			})
		})
	})
}

func TestDescribe(t *testing.T) {
	Convey("Given engine errors", t, func() {
		text, code := service.Describe(service.ErrScenarioNotFound)
		So(text, ShouldEqual, "Invalid scenario")
		So(code, ShouldEqual, types.CodeScenarioNotFound)

		_, code = service.Describe(service.ErrNoActiveSession)
		So(code, ShouldEqual, types.CodeNoActiveSession)

		_, code = service.Describe(types.ErrMalformed)
		So(code, ShouldEqual, types.CodeMalformed)

		_, code = service.Describe(errors.New("other"))
		So(code, ShouldEqual, types.CodeInternal)
	})
}
