package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"quizcoach-backend/internal/config"
	"quizcoach-backend/internal/db"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/internal/repository"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load questions from a YAML file into the question store",
	Long: `seed upserts every question in the file by id. Questions omitted from the
file are left untouched; set active: false to retire one.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "data/questions.yaml", "question bank to load")
}

type questionFile struct {
	Questions []questionEntry `yaml:"questions"`
}

type questionEntry struct {
	ID          string   `yaml:"id"`
	Topic       string   `yaml:"topic"`
	Level       int      `yaml:"level"`
	Prompt      string   `yaml:"prompt"`
	Choices     []string `yaml:"choices"`
	Answer      string   `yaml:"answer"`
	Explanation string   `yaml:"explanation"`
	MediaURL    string   `yaml:"media_url"`
	Active      *bool    `yaml:"active"`
}

func runSeed(cmd *cobra.Command, _ []string) error {
	data, err := os.ReadFile(seedFile)
	if err != nil {
		return err
	}
	questions, err := parseQuestions(data, cfg.Learning)
	if err != nil {
		return fmt.Errorf("%s: %w", seedFile, err)
	}

	conn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	if err := db.Migrate(conn); err != nil {
		return err
	}
	repo := repository.NewQuestionRepository(conn, logger)
	if err := repo.Upsert(cmd.Context(), questions); err != nil {
		return err
	}
	logger.Info("questions seeded", "file", seedFile, "count", len(questions))
	return nil
}

// parseQuestions decodes a question bank and rejects entries the store could
// never serve.
func parseQuestions(data []byte, lc config.LearningConfig) ([]*model.Question, error) {
	var f questionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	seen := make(map[string]bool, len(f.Questions))
	out := make([]*model.Question, 0, len(f.Questions))
	for i, e := range f.Questions {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("question %d: missing id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("question %s: duplicate id", id)
		}
		seen[id] = true

		topic, err := model.ParseTopic(e.Topic)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", id, err)
		}
		if e.Level < lc.MinLevel || e.Level > lc.MaxLevel {
			return nil, fmt.Errorf("question %s: level %d outside [%d, %d]", id, e.Level, lc.MinLevel, lc.MaxLevel)
		}
		if strings.TrimSpace(e.Prompt) == "" {
			return nil, fmt.Errorf("question %s: missing prompt", id)
		}
		if strings.TrimSpace(e.Answer) == "" {
			return nil, fmt.Errorf("question %s: missing answer", id)
		}

		active := true
		if e.Active != nil {
			active = *e.Active
		}
		out = append(out, &model.Question{
			ID:          id,
			Topic:       topic,
			Level:       e.Level,
			Prompt:      e.Prompt,
			Choices:     e.Choices,
			AnswerKey:   e.Answer,
			Explanation: e.Explanation,
			MediaURL:    e.MediaURL,
			Active:      active,
		})
	}
	return out, nil
}
