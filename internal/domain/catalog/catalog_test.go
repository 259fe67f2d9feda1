package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/triagebooth/internal/domain/catalog"
	"github.com/okian/triagebooth/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const minimal = `
tags:
  head: [h1]
scenarios:
  - id: x1
    name: Minimal
    ai: {triage: immediate, tests: [ct], ai_time_seconds: 2}
    vitals:
      - {key: head, label: Head, vital_label: GCS, value: "15", drone_text: scanning}
`

func TestDefault(t *testing.T) {
	Convey("Given the built-in catalog", t, func() {
		c, err := catalog.Default()
		So(err, ShouldBeNil)

		Convey("Then it holds the four booth scenarios in order", func() {
			list := c.List()
			So(list, ShouldHaveLength, 4)
			So(list[0].ID, ShouldEqual, "s1")
			So(list[3].ID, ShouldEqual, "s4")
		})

		Convey("Then the Hajj stampede reference matches the booth script", func() {
			s1, ok := c.Get("s1")
			So(ok, ShouldBeTrue)
			So(s1.AI.Triage, ShouldEqual, model.TriageRed)
			So(s1.AI.Hospital, ShouldEqual, "mina")
			So(s1.AI.Tests, ShouldResemble, []string{"fast", "lactate", "crossmatch"})
			So(s1.AI.AITimeSeconds, ShouldEqual, 1.2)
			So(s1.Total(), ShouldEqual, 5)

			v, ok := s1.Vital(model.VitalArms)
			So(ok, ShouldBeTrue)
			So(v.Value, ShouldEqual, "78/45 mmHg")
		})

		Convey("Then unknown ids are not found", func() {
			_, ok := c.Get("s9")
			So(ok, ShouldBeFalse)
		})

		Convey("Then every tag is listed sorted", func() {
			tags := c.Tags()
			So(len(tags), ShouldBeGreaterThan, 20)
			for i := 1; i < len(tags); i++ {
				So(tags[i-1].Name, ShouldBeLessThan, tags[i].Name)
			}
		})

		Convey("Then mutating a listed copy leaves the catalog intact", func() {
			list := c.List()
			list[0].Name = "changed"
			s1, _ := c.Get("s1")
			So(s1.Name, ShouldEqual, "Hajj Stampede")
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Given the built-in catalog", t, func() {
		c, err := catalog.Default()
		So(err, ShouldBeNil)

		cases := map[string]model.VitalKey{
			"s1_head":                               model.VitalHead,
			"  S2_CHEST.PNG ":                       model.VitalChest,
			"https://booth.example/tags/s3_legs.jpg": model.VitalLegs,
			"abdomen":                               model.VitalAbdomen,
			"s4_arm.jpeg":                           model.VitalArms,
			"patient-leg-tag":                       model.VitalLegs,
			"/static/s1_abdomen.png?v=2":            model.VitalAbdomen,
		}

		Convey("When payloads carry a known tag or key", func() {
			Convey("Then each resolves to its vital", func() {
				for payload, want := range cases {
					got, ok := c.Resolve(payload)
					So(ok, ShouldBeTrue)
					So(got, ShouldEqual, want)
				}
			})
		})

		Convey("When payloads carry nothing recognisable", func() {
			Convey("Then they do not resolve", func() {
				for _, payload := range []string{"", "   ", "s1_knee.jpg", "https://booth.example/"} {
					_, ok := c.Resolve(payload)
					So(ok, ShouldBeFalse)
				}
			})
		})
	})
}

func TestNormalize(t *testing.T) {
	Convey("Given raw scanner payloads", t, func() {
		So(catalog.Normalize(" S1_Head.JPG "), ShouldEqual, "s1_head")
		So(catalog.Normalize("http://x/y/z/s2_arms.png#frag"), ShouldEqual, "s2_arms")
		So(catalog.Normalize(`C:\tags\legs.png`), ShouldEqual, "legs")
		So(catalog.Normalize("chest"), ShouldEqual, "chest")
	})
}

func TestParse(t *testing.T) {
	Convey("Given YAML catalogs", t, func() {
		Convey("When the catalog is minimal and valid", func() {
			c, err := catalog.Parse([]byte(minimal))

			Convey("Then triage aliases are coerced", func() {
				So(err, ShouldBeNil)
				x1, ok := c.Get("x1")
				So(ok, ShouldBeTrue)
				So(x1.AI.Triage, ShouldEqual, model.TriageRed)
				k, ok := c.Resolve("H1.png")
				So(ok, ShouldBeTrue)
				So(k, ShouldEqual, model.VitalHead)
			})
		})

		invalid := []struct{ name, doc string }{
			{"no scenarios", `tags: {head: [h]}`},
			{"duplicate id", `
tags: {head: [h]}
scenarios:
  - {id: a, ai: {triage: red, ai_time_seconds: 1}, vitals: [{key: head}]}
  - {id: a, ai: {triage: red, ai_time_seconds: 1}, vitals: [{key: head}]}
`},
			{"bad triage", `
tags: {head: [h]}
scenarios:
  - {id: a, ai: {triage: purple, ai_time_seconds: 1}, vitals: [{key: head}]}
`},
			{"no vitals", `
tags: {head: [h]}
scenarios:
  - {id: a, ai: {triage: red, ai_time_seconds: 1}}
`},
			{"zero ai time", `
tags: {head: [h]}
scenarios:
  - {id: a, ai: {triage: red}, vitals: [{key: head}]}
`},
			{"unknown vital", `
tags: {head: [h]}
scenarios:
  - {id: a, ai: {triage: red, ai_time_seconds: 1}, vitals: [{key: knee}]}
`},
			{"duplicate tag", `
tags: {head: [h], chest: [H.png]}
scenarios:
  - {id: a, ai: {triage: red, ai_time_seconds: 1}, vitals: [{key: head}]}
`},
			{"untagged vital", `
tags: {head: [h]}
scenarios:
  - {id: a, ai: {triage: red, ai_time_seconds: 1}, vitals: [{key: head}, {key: chest}]}
`},
			{"tag to unknown vital", `
tags: {head: [h], knee: [k]}
scenarios:
  - {id: a, ai: {triage: red, ai_time_seconds: 1}, vitals: [{key: head}]}
`},
			{"not yaml", `scenarios: [`},
		}

		for _, tc := range invalid {
			Convey("When the catalog has "+tc.name, func() {
				_, err := catalog.Parse([]byte(tc.doc))

				Convey("Then it is rejected as invalid", func() {
					So(errors.Is(err, catalog.ErrInvalidCatalog), ShouldBeTrue)
				})
			})
		}
	})
}

func TestLoad(t *testing.T) {
	Convey("Given catalog paths", t, func() {
		Convey("When the path is empty", func() {
			c, err := catalog.Load("")

			Convey("Then the built-in catalog is used", func() {
				So(err, ShouldBeNil)
				So(c.List(), ShouldHaveLength, 4)
			})
		})

		Convey("When the path points to a file", func() {
			p := filepath.Join(t.TempDir(), "catalog.yaml")
			So(os.WriteFile(p, []byte(minimal), 0o600), ShouldBeNil)
			c, err := catalog.Load(p)

			Convey("Then the file is used", func() {
				So(err, ShouldBeNil)
				So(c.List(), ShouldHaveLength, 1)
			})
		})

		Convey("When the file is missing", func() {
			_, err := catalog.Load(filepath.Join(t.TempDir(), "missing.yaml"))

			Convey("Then a read error is returned", func() {
				So(errors.Is(err, catalog.ErrReadCatalog), ShouldBeTrue)
				So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
			})
		})
	})
}
