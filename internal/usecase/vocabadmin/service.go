// Package vocabadmin seeds the reference vocabularies and gazetteer from
// yaml files and exposes the explicit moderator path for pending learned
// entries.
package vocabadmin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/domain/geo"
	"janmat/internal/domain/vocab"
	"janmat/internal/errs"
	"janmat/internal/ports"
)

type Service struct {
	refs      ports.ReferenceStore
	geoRepo   ports.GeoRepository
	snapshots ports.SnapshotProvider
	uow       ports.UnitOfWork
}

func NewService(refs ports.ReferenceStore, geoRepo ports.GeoRepository, snapshots ports.SnapshotProvider, uow ports.UnitOfWork) *Service {
	return &Service{refs: refs, geoRepo: geoRepo, snapshots: snapshots, uow: uow}
}

type seedEntryFile struct {
	Category string `yaml:"category"`
	Entries  []struct {
		Code    string   `yaml:"code"`
		NameHI  string   `yaml:"name_hi"`
		NameEN  string   `yaml:"name_en"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"entries"`
}

type seedGazetteerFile struct {
	Districts []seedDistrict `yaml:"districts"`
}

type seedDistrict struct {
	Name       string         `yaml:"name"`
	Code       string         `yaml:"code"`
	Aliases    []string       `yaml:"aliases"`
	Assemblies []seedAssembly `yaml:"assemblies"`
	ULBs       []seedLeaf     `yaml:"ulbs"`
}

type seedAssembly struct {
	Name    string     `yaml:"name"`
	Code    string     `yaml:"code"`
	Aliases []string   `yaml:"aliases"`
	Blocks  []seedBlock `yaml:"blocks"`
}

type seedBlock struct {
	Name     string     `yaml:"name"`
	Aliases  []string   `yaml:"aliases"`
	Villages []seedLeaf `yaml:"villages"`
}

type seedLeaf struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type SeedResult struct {
	Entries  int
	GeoNodes int
}

// Seed loads every vocabulary yaml plus the gazetteer from dir. Seeded
// entries are approved from the start; reloading is idempotent via upsert on
// canonical codes.
func (s *Service) Seed(ctx context.Context, dir string) (SeedResult, error) {
	if ctx == nil {
		return SeedResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return SeedResult{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.vocabadmin"),
		slog.String("seed_dir", dir),
	)

	var out SeedResult
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		matches, globErr := filepath.Glob(filepath.Join(dir, "*.yaml"))
		if globErr != nil {
			return errs.Wrap(globErr, "list seed files")
		}
		if len(matches) == 0 {
			return fmt.Errorf("no seed files in %q", dir)
		}

		for _, path := range matches {
			if filepath.Base(path) == "gazetteer.yaml" {
				count, seedErr := s.seedGazetteer(txCtx, path)
				if seedErr != nil {
					return seedErr
				}
				out.GeoNodes += count
				continue
			}

			count, seedErr := s.seedEntries(txCtx, path)
			if seedErr != nil {
				return seedErr
			}
			out.Entries += count
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}

	if _, err := s.snapshots.Refresh(ctx); err != nil {
		return SeedResult{}, errs.Wrap(err, "refresh snapshot after seed")
	}

	logging.Info(logCtx, "seed completed",
		slog.Int("entries", out.Entries),
		slog.Int("geo_nodes", out.GeoNodes),
	)
	return out, nil
}

func (s *Service) seedEntries(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, errs.Wrapf(err, "read seed file %q", path)
	}

	var file seedEntryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, errs.Wrapf(err, "parse seed file %q", path)
	}

	category := vocab.Category(strings.TrimSpace(file.Category))
	if !category.Valid() {
		return 0, fmt.Errorf("seed file %q has invalid category %q", path, file.Category)
	}

	count := 0
	for _, item := range file.Entries {
		code := strings.TrimSpace(item.Code)
		if code == "" {
			code = vocab.CodeFor(item.NameHI)
		}
		if _, err := s.refs.Upsert(ctx, vocab.Entry{
			Code:           code,
			Category:       category,
			NameHI:         item.NameHI,
			NameEN:         item.NameEN,
			Aliases:        item.Aliases,
			IsActive:       true,
			Provenance:     vocab.ProvenanceSeeded,
			ApprovalStatus: vocab.ApprovalApproved,
		}); err != nil {
			return 0, errs.Wrapf(err, "seed entry %q", code)
		}
		count++
	}
	return count, nil
}

func (s *Service) seedGazetteer(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, errs.Wrapf(err, "read gazetteer %q", path)
	}

	var file seedGazetteerFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, errs.Wrapf(err, "parse gazetteer %q", path)
	}

	count := 0
	upsert := func(level geo.Level, name, code string, aliases []string, parentID uint64) (uint64, error) {
		id, upErr := s.geoRepo.UpsertNode(ctx, geo.GazetteerRecord{
			Node: geo.Node{
				Type: level,
				Name: name,
				Code: code,
			},
			ParentID: parentID,
			Aliases:  aliases,
		})
		if upErr != nil {
			return 0, errs.Wrapf(upErr, "seed geo node %q", name)
		}
		count++
		return id, nil
	}

	for _, district := range file.Districts {
		districtID, err := upsert(geo.LevelDistrict, district.Name, district.Code, district.Aliases, 0)
		if err != nil {
			return 0, err
		}

		for _, assembly := range district.Assemblies {
			assemblyID, err := upsert(geo.LevelAssembly, assembly.Name, assembly.Code, assembly.Aliases, districtID)
			if err != nil {
				return 0, err
			}

			for _, block := range assembly.Blocks {
				blockID, err := upsert(geo.LevelBlock, block.Name, "", block.Aliases, assemblyID)
				if err != nil {
					return 0, err
				}

				for _, village := range block.Villages {
					if _, err := upsert(geo.LevelVillage, village.Name, "", village.Aliases, blockID); err != nil {
						return 0, err
					}
				}
			}
		}

		for _, ulb := range district.ULBs {
			if _, err := upsert(geo.LevelULB, ulb.Name, "", ulb.Aliases, districtID); err != nil {
				return 0, err
			}
		}
	}
	return count, nil
}

// ListPending returns the learned entries awaiting moderation.
func (s *Service) ListPending(ctx context.Context, category vocab.Category) ([]vocab.Entry, error) {
	return s.refs.List(ctx, ports.ReferenceFilter{
		Category:       category,
		ApprovalStatus: vocab.ApprovalPending,
		ActiveOnly:     true,
	})
}

// Approve is the explicit moderator promotion path.
func (s *Service) Approve(ctx context.Context, category vocab.Category, code string) error {
	if err := s.refs.SetApproval(ctx, category, code, vocab.ApprovalApproved); err != nil {
		return errs.Wrap(err, "approve entry")
	}
	_, err := s.snapshots.Refresh(ctx)
	return err
}

func (s *Service) Reject(ctx context.Context, category vocab.Category, code string) error {
	if err := s.refs.SetApproval(ctx, category, code, vocab.ApprovalRejected); err != nil {
		return errs.Wrap(err, "reject entry")
	}
	_, err := s.snapshots.Refresh(ctx)
	return err
}
