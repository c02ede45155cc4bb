package models

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestProjectCreateDefaults(t *testing.T) {
	s := NewProjectStore()
	s.Create(&Project{ID: "p1", Name: "Spring push"})

	p, err := s.Get("p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Status != ProjectStatusDraft || p.CurrentStep != StepBrief || p.BudgetBand != BudgetBandMedium {
		t.Fatalf("defaults = %q %q %q", p.Status, p.CurrentStep, p.BudgetBand)
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not stamped: %+v", p)
	}

	// explicit values are not overridden
	s.Create(&Project{ID: "p2", Status: ProjectStatusArchived, CurrentStep: StepExport, BudgetBand: BudgetBandPremium})
	p, _ = s.Get("p2")
	if p.Status != ProjectStatusArchived || p.CurrentStep != StepExport || p.BudgetBand != BudgetBandPremium {
		t.Fatalf("explicit values lost: %+v", p)
	}
}

func TestProjectGetReturnsCopy(t *testing.T) {
	s := NewProjectStore()
	s.Create(&Project{ID: "p1", Name: "original"})

	p, _ := s.Get("p1")
	p.Name = "tampered"
	p.Status = ProjectStatusApproved

	again, _ := s.Get("p1")
	if again.Name != "original" || again.Status != ProjectStatusDraft {
		t.Fatalf("store mutated through a copy: %+v", again)
	}

	if _, err := s.Get("missing"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("missing project: err = %v", err)
	}
}

func TestProjectUpdate(t *testing.T) {
	s := NewProjectStore()
	s.Create(&Project{ID: "p1"})
	p, _ := s.Get("p1")
	created := p.UpdatedAt

	time.Sleep(2 * time.Millisecond)
	err := s.Update("p1", func(p *Project) {
		p.Status = ProjectStatusInProgress
		p.SelectedVariant = 2
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	p, _ = s.Get("p1")
	if p.Status != ProjectStatusInProgress || p.SelectedVariant != 2 {
		t.Fatalf("project = %+v", p)
	}
	if !p.UpdatedAt.After(created) {
		t.Errorf("UpdatedAt not bumped: %v vs %v", p.UpdatedAt, created)
	}

	if err := s.Update("missing", func(*Project) {}); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("missing project: err = %v", err)
	}
}

func TestProjectDelete(t *testing.T) {
	s := NewProjectStore()
	s.Create(&Project{ID: "p1"})

	if err := s.Delete("p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("p1"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("deleted project still present")
	}
	if err := s.Delete("p1"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("second delete: err = %v", err)
	}
}

func TestProjectListNewestFirst(t *testing.T) {
	s := NewProjectStore()
	s.Create(&Project{ID: "p1"})
	time.Sleep(2 * time.Millisecond)
	s.Create(&Project{ID: "p2"})
	time.Sleep(2 * time.Millisecond)
	s.Create(&Project{ID: "p3"})

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	want := []string{"p3", "p2", "p1"}
	for i, p := range list {
		if p.ID != want[i] {
			t.Errorf("list[%d] = %s, want %s", i, p.ID, want[i])
		}
	}
}

func TestBriefValidate(t *testing.T) {
	valid := CreativeBrief{Brand: "EcoPhone", Theme: "circular tech", DurationSec: 30, AspectRatio: "16:9"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid brief rejected: %v", err)
	}

	cases := []struct {
		name string
		mut  func(*CreativeBrief)
		want string
	}{
		{"brand", func(b *CreativeBrief) { b.Brand = "" }, "brand is required"},
		{"theme", func(b *CreativeBrief) { b.Theme = "" }, "theme is required"},
		{"duration zero", func(b *CreativeBrief) { b.DurationSec = 0 }, "duration must be positive"},
		{"duration negative", func(b *CreativeBrief) { b.DurationSec = -5 }, "duration must be positive"},
		{"aspect ratio", func(b *CreativeBrief) { b.AspectRatio = "" }, "aspect_ratio is required"},
	}
	for _, c := range cases {
		b := valid
		c.mut(&b)
		err := b.Validate()
		if err == nil {
			t.Errorf("%s: invalid brief accepted", c.name)
			continue
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: err = %v, want %q", c.name, err, c.want)
		}
	}
}
