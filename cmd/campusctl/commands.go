package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/campuspass/backend/internal/audit"
	"github.com/campuspass/backend/internal/auth"
	"github.com/campuspass/backend/internal/credentials"
	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/server"
	"github.com/campuspass/backend/pkg/database"
	"github.com/campuspass/backend/pkg/storage"
)

func (a *app) pool(cmd *cobra.Command) (*pgxpool.Pool, error) {
	return database.NewPostgresPool(cmd.Context(), a.cfg.Database.DSN(), database.PoolOptions{
		MaxConns:       2,
		ConnectRetries: 1,
	}, a.logger)
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := a.pool(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()
			applied, err := database.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			return nil
		},
	}
}

func newTokenCommand(a *app) *cobra.Command {
	var (
		userID string
		email  string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := uuid.New()
			if userID != "" {
				parsed, err := uuid.Parse(userID)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
				id = parsed
			}
			r := models.Role(role)
			if r != models.RoleAdmin && r != models.RoleStudent {
				return fmt.Errorf("--role must be admin or student, got %q", role)
			}
			svc := auth.NewJWTService(a.cfg.JWT.Secret, a.cfg.JWT.Issuer, ttl)
			token, err := svc.Generate(models.Principal{UserID: id, Email: email, Role: r})
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (random when empty)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", string(models.RoleStudent), "admin or student")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newRenderCommand(a *app) *cobra.Command {
	var (
		registrationID string
		kind           string
		out            string
		sample         bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a ticket or certificate PDF to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kind != credentials.KindTicket && kind != credentials.KindCertificate {
				return fmt.Errorf("--kind must be %s or %s", credentials.KindTicket, credentials.KindCertificate)
			}
			loc, err := a.cfg.Credentials.Location()
			if err != nil {
				return err
			}
			renderer := credentials.NewRenderer(credentials.RenderOptions{
				Location:        loc,
				CollegeFallback: a.cfg.Credentials.CollegeFallback,
				IssuerName:      a.cfg.Credentials.IssuerName,
				QRSize:          a.cfg.Credentials.QRSize,
			})

			var doc *credentials.Document
			if sample {
				doc, err = renderSample(renderer, kind)
			} else {
				doc, err = a.renderStored(cmd, renderer, registrationID, kind)
			}
			if err != nil {
				return err
			}

			path := out
			if path == "" {
				path = doc.Filename
			}
			if err := os.WriteFile(path, doc.Content, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(doc.Content))
			return nil
		},
	}
	cmd.Flags().StringVar(&registrationID, "registration", "", "registration id to render")
	cmd.Flags().StringVar(&kind, "kind", credentials.KindTicket, "ticket or certificate")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (defaults to the suggested filename)")
	cmd.Flags().BoolVar(&sample, "sample", false, "render placeholder data without a database")
	return cmd
}

func (a *app) renderStored(cmd *cobra.Command, renderer *credentials.Renderer, registrationID, kind string) (*credentials.Document, error) {
	id, err := uuid.Parse(registrationID)
	if err != nil {
		return nil, fmt.Errorf("invalid --registration: %w", err)
	}
	pool, err := a.pool(cmd)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	b := server.PostgresBackend(pool)
	issuer := credentials.NewIssuer(credentials.Stores{
		Registrations: b.Registrations,
		Events:        b.Events,
		Users:         b.Users,
	}, renderer, nil, a.logger)
	if kind == credentials.KindCertificate {
		return issuer.IssueCertificate(cmd.Context(), id)
	}
	return issuer.IssueTicket(cmd.Context(), id)
}

func renderSample(renderer *credentials.Renderer, kind string) (*credentials.Document, error) {
	now := time.Now()
	reg := &models.Registration{
		ID:            uuid.New(),
		Status:        models.RegistrationApproved,
		PaymentStatus: models.PaymentPaid,
	}
	subject := credentials.Subject{
		Registration: reg,
		Event: &models.Event{
			ID:          uuid.New(),
			Title:       "Annual Inter-College Hackathon",
			Location:    "Main Auditorium, Block A",
			CollegeName: "Sample Institute of Technology",
			StartDate:   now.Add(7 * 24 * time.Hour),
		},
		User:     &models.User{FullName: "Sample Attendee", Email: "attendee@example.edu"},
		IssuedAt: now,
	}
	render := renderer.Ticket
	if kind == credentials.KindCertificate {
		render = renderer.Certificate
	}
	content, err := render(subject)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", kind, err)
	}
	return &credentials.Document{
		Filename:    kind + "-" + reg.ShortID() + ".pdf",
		ContentType: credentials.ContentTypePDF,
		Content:     content,
	}, nil
}

func newUserCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the local user directory",
	}
	var (
		email    string
		fullName string
		role     string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Create or update a user by email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := models.Role(role)
			if r != models.RoleAdmin && r != models.RoleStudent {
				return fmt.Errorf("--role must be admin or student, got %q", role)
			}
			pool, err := a.pool(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()
			u := &models.User{Email: email, FullName: fullName, Role: r}
			if err := auth.NewRepository(pool).Upsert(cmd.Context(), u); err != nil {
				return fmt.Errorf("upsert user: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "email address")
	add.Flags().StringVar(&fullName, "name", "", "full name")
	add.Flags().StringVar(&role, "role", string(models.RoleStudent), "admin or student")
	_ = add.MarkFlagRequired("email")
	cmd.AddCommand(add)
	return cmd
}

func (a *app) archiveBucket(cmd *cobra.Command) (*storage.S3, error) {
	if !a.cfg.AWS.Enabled() {
		return nil, fmt.Errorf("AWS_S3_ARCHIVE_BUCKET is not set")
	}
	return storage.NewS3(cmd.Context(), storage.S3Config{
		Region:               a.cfg.AWS.Region,
		AccessKeyID:          a.cfg.AWS.AccessKeyID,
		SecretAccessKey:      a.cfg.AWS.SecretAccessKey,
		Endpoint:             a.cfg.AWS.Endpoint,
		ArchiveBucket:        a.cfg.AWS.ArchiveBucket,
		PresignExpireMinutes: a.cfg.AWS.PresignExpireMinutes,
	}, a.logger)
}

func newArchiveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export and inspect audit archives",
	}
	run := &cobra.Command{
		Use:   "run",
		Short: "Archive every audit entry newer than the stored cursor, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			objects, err := a.archiveBucket(cmd)
			if err != nil {
				return err
			}
			pool, err := a.pool(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()
			archiver := audit.NewArchiver(audit.NewRepository(pool), objects, a.cfg.Archive.BatchSize, a.cfg.Archive.Interval(), a.logger)
			n, err := archiver.Drain(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d entries to s3://%s\n", n, objects.Bucket())
			return nil
		},
	}
	url := &cobra.Command{
		Use:   "url <key>",
		Short: "Print a pre-signed download URL for an archive object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objects, err := a.archiveBucket(cmd)
			if err != nil {
				return err
			}
			link, err := objects.PresignedDownloadURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.AddCommand(run, url)
	return cmd
}
