package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"userapi/internal/cache"
	"userapi/internal/config"
	"userapi/internal/db"
	"userapi/internal/logging"
	"userapi/internal/model"
	"userapi/internal/repository"
	"userapi/internal/service"
)

// SeedUser is one entry of the seed file.
type SeedUser struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type seedResult struct {
	Created int
	Updated int
	Skipped int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		source string
		update bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed users from a JSON file or URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger, err := logging.New(cfg.Environment)
			if err != nil {
				return fmt.Errorf("logger init: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			users, err := loadSeedUsers(cmd.Context(), source)
			if err != nil {
				return err
			}
			logger.Info("seed users loaded", zap.String("source", source), zap.Int("count", len(users)))

			gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN, db.Options{MaxOpenConns: cfg.DBMaxOpenConn})
			if err != nil {
				return fmt.Errorf("database init: %w", err)
			}
			if err := db.Migrate(cmd.Context(), gormDB, cfg.DBDriver); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			redisClient := cache.NewRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.RedisTimeout)
			defer redisClient.Close()
			views := cache.NewUserCache(cache.New(redisClient, logger), cfg.UserCacheTTL, logger)

			repo := repository.NewUserRepository(gormDB, cfg.DBOpTimeout)
			res, err := seedUsers(cmd.Context(), repo, views, users, update, logger)
			if err != nil {
				return err
			}
			logger.Info("seed completed",
				zap.Int("created", res.Created),
				zap.Int("updated", res.Updated),
				zap.Int("skipped", res.Skipped),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "file", "f", "seed/users.json", "path or http(s) URL of the seed JSON")
	cmd.Flags().BoolVar(&update, "update", false, "overwrite names of users that already exist")
	return cmd
}

// loadSeedUsers reads the seed list from a local path or an http(s) URL.
func loadSeedUsers(ctx context.Context, source string) ([]SeedUser, error) {
	var body io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch seed users: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("seed source returned status code: %d", resp.StatusCode)
		}
		body = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		body = f
	}
	defer body.Close()

	var users []SeedUser
	if err := json.NewDecoder(body).Decode(&users); err != nil {
		return nil, fmt.Errorf("parse seed users: %w", err)
	}
	return users, nil
}

// seedUsers creates missing users and, when update is set, refreshes the
// names of existing ones along with their cached views. Invalid entries are skipped.
func seedUsers(ctx context.Context, repo repository.UserRepository, views service.UserViewCache, users []SeedUser, update bool, logger *zap.Logger) (seedResult, error) {
	var res seedResult
	for _, u := range users {
		in := service.RegisterInput{Email: u.Email, Password: u.Password, FirstName: u.FirstName, LastName: u.LastName}
		if err := service.ValidateStruct(in); err != nil {
			logger.Warn("skipping invalid seed user", zap.String("email", u.Email), zap.Error(err))
			res.Skipped++
			continue
		}

		existing, err := repo.FindByEmail(ctx, u.Email)
		if err != nil {
			return res, fmt.Errorf("check user %s: %w", u.Email, err)
		}

		if existing != nil {
			if !update {
				res.Skipped++
				continue
			}
			patch := repository.Patch{"first_name": u.FirstName, "last_name": u.LastName}
			updated, err := repo.Update(ctx, existing.ID, patch)
			if err != nil {
				return res, fmt.Errorf("update user %s: %w", u.Email, err)
			}
			if updated != nil {
				views.Put(ctx, updated.View())
			}
			res.Updated++
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return res, fmt.Errorf("hash password for %s: %w", u.Email, err)
		}
		if _, err := repo.Create(ctx, &model.User{
			Email:        repository.NormalizeEmail(u.Email),
			PasswordHash: string(hash),
			FirstName:    u.FirstName,
			LastName:     u.LastName,
		}); err != nil {
			return res, fmt.Errorf("create user %s: %w", u.Email, err)
		}
		res.Created++
	}
	return res, nil
}
