package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agrikonek/internal/config"
	"agrikonek/internal/domain"
	httpapi "agrikonek/internal/http"
	"agrikonek/internal/platform/database"
	"agrikonek/internal/platform/logger"
	"agrikonek/internal/repository"
	"agrikonek/internal/seed"
	"agrikonek/internal/service"
)

// =============================================================================
// MIGRATE
// =============================================================================

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	log, err := logger.NewLogger(cfg.Log.Level, "console", "agrikonekctl")
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()
	applied, err := database.Migrate(ctx, db, log)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	}
	for _, v := range applied {
		fmt.Fprintln(cmd.OutOrStdout(), "applied", v)
	}
	return nil
}

// =============================================================================
// SEED
// =============================================================================

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Inspect the bundled Philippine region dataset",
}

var seedCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Parse the bundled dataset and print its size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := seed.Default()
		if err != nil {
			return err
		}
		groups, regions, provinces := p.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "island groups: %d\nregions: %d\nprovinces: %d\n", groups, regions, provinces)
		return nil
	},
}

// =============================================================================
// TOKEN
// =============================================================================

var (
	tokenUser string
	tokenRole string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token signed with AUTH_JWT_SECRET",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id placed in the subject claim")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleFarmer), "superadmin | regional_admin | organization_admin | farmer")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if cfg.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is not set")
	}
	tok, err := httpapi.NewAuthenticator(cfg.Auth).Issue(tokenUser, domain.Role(tokenRole))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

// =============================================================================
// PROFILE
// =============================================================================

var (
	profileUser   string
	profileRole   string
	profileRegion string
	profileOrg    string
	profileName   string
	profileEmail  string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Create or update a user's profile (role, region, organization) in the database",
	Long: `Writes the profile row that maps a user to a role, region and organization.
Only the flags given are changed; pass an empty --region or --org to clear one.`,
	Args: cobra.NoArgs,
	RunE: runProfile,
}

func init() {
	profileCmd.Flags().StringVar(&profileUser, "user", "", "user id (the token subject)")
	profileCmd.Flags().StringVar(&profileRole, "role", "", "superadmin | regional_admin | organization_admin | farmer")
	profileCmd.Flags().StringVar(&profileRegion, "region", "", "region id or code")
	profileCmd.Flags().StringVar(&profileOrg, "org", "", "organization id")
	profileCmd.Flags().StringVar(&profileName, "name", "", "full name")
	profileCmd.Flags().StringVar(&profileEmail, "email", "", "email address")
	_ = profileCmd.MarkFlagRequired("user")
}

func runProfile(cmd *cobra.Command, _ []string) error {
	req := service.UpsertProfileRequest{Role: domain.Role(profileRole)}
	flags := cmd.Flags()
	if flags.Changed("region") {
		req.RegionID = &profileRegion
	}
	if flags.Changed("org") {
		req.OrganizationID = &profileOrg
	}
	if flags.Changed("name") {
		req.FullName = &profileName
	}
	if flags.Changed("email") {
		req.Email = &profileEmail
	}

	cfg := config.Load()
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	p, err := upsertProfile(cmd.Context(), repository.New(db), profileUser, req)
	if err != nil {
		return err
	}
	region := "-"
	if p.RegionID != nil {
		region = *p.RegionID
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s role=%s region=%s\n", p.UserID, p.Role, region)
	return nil
}

func upsertProfile(ctx context.Context, repos *repository.Repositories, userID string, req service.UpsertProfileRequest) (*domain.Profile, error) {
	profiles := service.NewProfileService(repos, zap.NewNop())
	return profiles.UpsertProfile(operator(ctx), userID, req)
}

// operator platform-wide rights; whoever runs agrikonekctl owns the database
func operator(ctx context.Context) context.Context {
	return domain.WithSession(ctx, domain.Session{UserID: "agrikonekctl", Role: domain.RoleSuperadmin})
}

// =============================================================================
// EXPORT
// =============================================================================

var (
	exportYear   int
	exportRegion string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the regional budget report workbook (.xlsx) straight from the database",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().IntVar(&exportYear, "fiscal-year", time.Now().Year(), "fiscal year")
	exportCmd.Flags().StringVar(&exportRegion, "region", "", "limit to one region id")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default budget-report-FY<year>.xlsx)")
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	buf, err := exportWorkbook(cmd.Context(), repository.New(db), exportYear, exportRegion)
	if err != nil {
		return err
	}
	out := exportOut
	if out == "" {
		out = fmt.Sprintf("budget-report-FY%d.xlsx", exportYear)
	}
	if err := os.WriteFile(out, buf, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(buf))
	return nil
}

func exportWorkbook(ctx context.Context, repos *repository.Repositories, year int, regionID string) ([]byte, error) {
	reports := service.NewReportService(repos, zap.NewNop())
	return reports.ExportBudgetReport(operator(ctx), year, regionID)
}
