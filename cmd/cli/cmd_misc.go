package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simplegpt/backend/internal/model/chat"
)

func init() {
	imageCmd.Flags().String("model", "", "image model, server default when empty")
	rootCmd.AddCommand(modelsCmd, imageCmd, uploadCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List provider models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		models, err := newClient().Models(cmd.Context())
		if err != nil {
			return fmt.Errorf("list models: %w", err)
		}
		if len(models) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No models available.")
			return nil
		}
		for _, m := range models {
			fmt.Fprintln(cmd.OutOrStdout(), m)
		}
		return nil
	},
}

var imageCmd = &cobra.Command{
	Use:   "image <prompt>",
	Short: "Generate an image and print its URL",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		img, err := newClient().GenerateImage(cmd.Context(), chat.ImageGenerationRequest{
			Prompt: strings.Join(args, " "),
			Model:  model,
		})
		if err != nil {
			return fmt.Errorf("generate image: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), img.URL)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload an image and print its URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		up, err := uploadFile(cmd.Context(), newClient(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", up.Name, up.URL)
		return nil
	},
}

// uploadFile sends the file at path through c.
func uploadFile(ctx context.Context, c uploader, path string) (*chat.ImageUpload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	up, err := c.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", path, err)
	}
	return up, nil
}
