package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/lexicon/internal/config"
	"github.com/MarcoPoloResearchLab/lexicon/internal/logging"
	"github.com/MarcoPoloResearchLab/lexicon/internal/messages"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const remotePushTimeout = 30 * time.Second

type pushOptions struct {
	file       string
	name       string
	maintainer string
	server     string
}

func newPushCommand() *cobra.Command {
	var options pushOptions
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Sync a message file and print the reconciled messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(options.file)
			if err != nil {
				return fmt.Errorf("read message file: %w", err)
			}

			if strings.TrimSpace(options.server) != "" {
				client := resty.New().SetTimeout(remotePushTimeout)
				return pushRemote(cmd.Context(), client, options, raw, cmd.OutOrStdout())
			}

			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			messagesService, closeDB, err := openMessagesService(appConfig, logger)
			if err != nil {
				return err
			}
			defer closeDB()

			return pushSubmission(cmd.Context(), messagesService, options, raw, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&options.file, "file", "", "JSON message file ({path: {lang: {key: value}}})")
	cmd.Flags().StringVar(&options.name, "name", "", "Project name")
	cmd.Flags().StringVar(&options.maintainer, "maintainer", "", "Project maintainer")
	cmd.Flags().StringVar(&options.server, "server", "", "Base URL of a running lexicon-api; the local store is used when empty")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// pushSubmission syncs straight into the configured store.
func pushSubmission(ctx context.Context, service *messages.Service, options pushOptions, raw []byte, out io.Writer) error {
	submission, err := messages.DecodeSubmission(raw)
	if err != nil {
		return err
	}

	result, err := service.Sync(ctx, messages.SyncRequest{
		Name:       options.name,
		Maintainer: options.maintainer,
		Messages:   submission,
	})
	if err != nil {
		return err
	}
	return writeMessages(out, result.Messages)
}

type remoteFailure struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// pushRemote validates the file locally and syncs it through the HTTP API.
func pushRemote(ctx context.Context, client *resty.Client, options pushOptions, raw []byte, out io.Writer) error {
	submission, err := messages.DecodeSubmission(raw)
	if err != nil {
		return err
	}

	var (
		reconciled messages.Submission
		failure    remoteFailure
	)
	endpoint := strings.TrimRight(options.server, "/") + "/messages/sync"
	response, err := client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"name":       options.name,
			"maintainer": options.maintainer,
			"messages":   submission,
		}).
		SetResult(&reconciled).
		SetError(&failure).
		Post(endpoint)
	if err != nil {
		return fmt.Errorf("push to %s: %w", endpoint, err)
	}
	if response.IsError() {
		return fmt.Errorf("push rejected: %s: %s %s", response.Status(), failure.Error, failure.Code)
	}
	return writeMessages(out, reconciled)
}

func writeMessages(out io.Writer, submission messages.Submission) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(submission)
}
