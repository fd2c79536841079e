package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/service"
)

// issuerFlag 以某名玩家的身份操作，缺省为控制台
type issuerFlag struct {
	as string
}

func (f *issuerFlag) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.as, "as", "", "Act as this player instead of the console")
}

func (f *issuerFlag) resolve(s *session) (uuid.UUID, error) {
	if f.as == "" {
		return domain.Console, nil
	}
	rec, err := s.player(f.as)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--as: %w", err)
	}
	return rec.ID(), nil
}

func newWarnCmd(a *app) *cobra.Command {
	issuer := &issuerFlag{}
	cmd := &cobra.Command{
		Use:   "warn <player> <reason...>",
		Short: "Add a warning to a player's record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			from, err := issuer.resolve(s)
			if err != nil {
				return err
			}
			rec, err := s.player(args[0])
			if err != nil {
				return err
			}
			moderation := service.NewModerationService(s.records, a.log)
			w, err := moderation.Warn(from, rec.ID(), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if err := s.save(rec.ID()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "warned %s (%d total): %s\n", s.name(rec.ID()), rec.WarningCount(), w.Reason)
			return nil
		},
	}
	issuer.register(cmd)
	return cmd
}

func newWarningsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warnings",
		Short: "List or remove warnings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <player> [first] [last]",
		Short: "List warnings, optionally a slice by index",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.player(args[0])
			if err != nil {
				return err
			}
			first, last := 0, rec.WarningCount()
			if len(args) > 1 {
				if first, err = strconv.Atoi(args[1]); err != nil {
					return fmt.Errorf("invalid first index: %w", err)
				}
			}
			if len(args) > 2 {
				if last, err = strconv.Atoi(args[2]); err != nil {
					return fmt.Errorf("invalid last index: %w", err)
				}
			}

			moderation := service.NewModerationService(s.records, a.log)
			warnings, err := moderation.Warnings(rec.ID(), first, last)
			if err != nil {
				return err
			}
			for i, w := range warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s %s: %s\n", first+i, w.Display, s.name(w.Issuer), w.Reason)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <player> <index>",
		Short: "Remove the warning at index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index: %w", err)
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.player(args[0])
			if err != nil {
				return err
			}
			moderation := service.NewModerationService(s.records, a.log)
			if err := moderation.RemoveWarning(rec.ID(), index); err != nil {
				return err
			}
			if err := s.save(rec.ID()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed warning %d from %s\n", index, s.name(rec.ID()))
			return nil
		},
	})

	return cmd
}

func newMuteCmd(a *app) *cobra.Command {
	issuer := &issuerFlag{}
	cmd := &cobra.Command{
		Use:   "mute <player> <duration>",
		Short: "Mute a player for a duration such as 10m or 2h",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			from, err := issuer.resolve(s)
			if err != nil {
				return err
			}
			rec, err := s.player(args[0])
			if err != nil {
				return err
			}
			moderation := service.NewModerationService(s.records, a.log)
			status, err := moderation.Mute(from, rec.ID(), d)
			if err != nil {
				return err
			}
			if err := s.save(rec.ID()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "muted %s until %s\n", s.name(rec.ID()), domain.FormatDisplay(status.ReleaseAt))
			return nil
		},
	}
	issuer.register(cmd)
	return cmd
}

func newUnmuteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unmute <player>",
		Short: "Lift a player's mute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.player(args[0])
			if err != nil {
				return err
			}
			moderation := service.NewModerationService(s.records, a.log)
			wasMuted, err := moderation.Unmute(domain.Console, rec.ID())
			if err != nil {
				return err
			}
			if !wasMuted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not muted\n", s.name(rec.ID()))
				return nil
			}
			if err := s.save(rec.ID()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unmuted %s\n", s.name(rec.ID()))
			return nil
		},
	}
}
