package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/medischedule-api/internal/app"
	"github.com/jwalitptl/medischedule-api/internal/config"
	"github.com/jwalitptl/medischedule-api/internal/model"
	authService "github.com/jwalitptl/medischedule-api/internal/service/auth"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
	"github.com/jwalitptl/medischedule-api/pkg/logger"
	"github.com/jwalitptl/medischedule-api/pkg/messaging"
	"github.com/jwalitptl/medischedule-api/pkg/metrics"
)

const seedTimeout = 30 * time.Second

var defaultSpecialties = []model.CreateSpecialtyRequest{
	{Name: "General Medicine", Description: "Primary care and internal medicine"},
	{Name: "Surgery", Description: "General and operative surgery"},
	{Name: "Pediatrics", Description: "Care of infants, children and adolescents"},
	{Name: "Obstetrics and Gynecology", Description: "Pregnancy and women's health"},
	{Name: "Cardiology", Description: "Heart and blood vessels"},
	{Name: "Neurology", Description: "Brain and nervous system"},
	{Name: "Dermatology", Description: "Skin, hair and nails"},
	{Name: "Otolaryngology", Description: "Ear, nose and throat"},
}

// withServices opens the store from configuration and hands the services to fn.
func withServices(configPath string, fn func(ctx context.Context, svc *services) error) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger.New(logger.Config{Level: cfg.Log.Level, Format: "console"})

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	store, closeStore, err := app.OpenStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(ctx, buildServices(cfg, store, messaging.NopBroker{}, metrics.NewNop()))
}

func seedAdminCmd(configPath *string) *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the root admin account if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(*configPath, func(ctx context.Context, svc *services) error {
				perms := model.FullAdminPermissions()
				user, err := svc.auth.CreateAccount(ctx, authService.AccountParams{
					Email:       email,
					Password:    password,
					FullName:    name,
					Role:        model.RoleAdmin,
					Permissions: &perms,
				})
				if err != nil {
					if apperrors.KindOf(err) == apperrors.KindConflict {
						log.Info().Str("email", email).Msg("Admin already exists")
						return nil
					}
					return fmt.Errorf("failed to create admin: %w", err)
				}
				log.Info().Str("id", user.ID).Str("email", user.Email).Msg("Admin created")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "admin@medischedule.com", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.Flags().StringVar(&name, "name", "Admin", "admin full name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func seedSpecialtiesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-specialties",
		Short: "Create the default specialty catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(*configPath, func(ctx context.Context, svc *services) error {
				created := 0
				for i := range defaultSpecialties {
					_, err := svc.directory.CreateSpecialty(ctx, &defaultSpecialties[i])
					switch {
					case err == nil:
						created++
					case apperrors.KindOf(err) == apperrors.KindConflict:
					default:
						return fmt.Errorf("failed to create specialty %q: %w", defaultSpecialties[i].Name, err)
					}
				}
				log.Info().Int("created", created).Int("total", len(defaultSpecialties)).Msg("Specialties seeded")
				return nil
			})
		},
	}
}
