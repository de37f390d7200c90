package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	goTodo "github.com/MrEthical07/goTodo"
	"github.com/MrEthical07/goTodo/internal/backends"
	"github.com/MrEthical07/goTodo/internal/bootstrap"
	"github.com/MrEthical07/goTodo/internal/logging"
	"github.com/MrEthical07/goTodo/internal/users"
	"github.com/MrEthical07/goTodo/password"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	flagEmail    string
	flagFullName string
	flagRoles    []string

	hashPasswordCmd = &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its digest",
		Long: `hash-password prints the digest of the first line read from stdin using the
configured algorithm. Use it to seed the users collection by hand.`,
		Args: cobra.NoArgs,
		RunE: runHashPassword,
	}

	createUserCmd = &cobra.Command{
		Use:   "create-user",
		Short: "Insert an account into the users collection",
		Long: `create-user reads the password from the first line of stdin, hashes it with
the configured algorithm and inserts the account into MongoDB.`,
		Args: cobra.NoArgs,
		RunE: runCreateUser,
	}
)

func init() {
	createUserCmd.Flags().StringVar(&flagEmail, "email", "", "login email (required)")
	createUserCmd.Flags().StringVar(&flagFullName, "name", "", "full name")
	createUserCmd.Flags().StringSliceVar(&flagRoles, "role", nil, "role to grant, repeatable (default USER)")
	_ = createUserCmd.MarkFlagRequired("email")
}

func runHashPassword(cmd *cobra.Command, _ []string) error {
	cfg, err := goTodo.LoadConfig(flagEnvFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	plaintext, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}

	digest, err := hashWith(cfg.Password, plaintext)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), digest)
	return nil
}

func runCreateUser(cmd *cobra.Command, _ []string) error {
	cfg, err := goTodo.LoadConfig(flagEnvFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	plaintext, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}
	digest, err := hashWith(cfg.Password, plaintext)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closer.Close()

	h := bootstrap.NewHandle[*mongo.Client]("mongo")
	life := backends.MongoLifespan(cfg.Mongo, cfg.Bootstrap.Cleanup, logger)

	return life.Run(cmd.Context(), h, func(ctx context.Context) error {
		db, err := backends.Database(h, cfg.Mongo.Database)
		if err != nil {
			return err
		}
		if err := users.EnsureIndexes(ctx, db); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}

		id, err := users.NewRepository(db).Create(ctx, flagFullName, flagEmail, digest, flagRoles)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	})
}

func hashWith(cfg password.Config, plaintext string) (string, error) {
	hasher, err := password.NewHasher(cfg)
	if err != nil {
		return "", fmt.Errorf("password hasher: %w", err)
	}
	return hasher.Hash(plaintext)
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}
