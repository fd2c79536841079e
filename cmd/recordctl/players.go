package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cfchat/backend/internal/domain"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <player>",
		Short: "Print a player's moderation and mail state",
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
			rec.IsMuted()
			state := rec.Snapshot()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "%s (%s)\n", s.name(state.ID), state.ID)
			if state.Mute.Active {
				fmt.Fprintf(out, "  muted until %s by %s\n",
					domain.FormatDisplay(state.Mute.ReleaseAt), s.name(state.Mute.Issuer))
			} else {
				fmt.Fprintln(out, "  not muted")
			}

			fmt.Fprintf(out, "  warnings: %d\n", len(state.Warnings))
			for i, w := range state.Warnings {
				fmt.Fprintf(out, "    [%d] %s %s: %s\n", i, w.Display, s.name(w.Issuer), w.Reason)
			}

			fmt.Fprintf(out, "  mail: %d\n", len(state.Mail))
			for _, id := range rec.MailIDs() {
				item := state.Mail[id]
				marker := " "
				if item.Unread {
					marker = "*"
				}
				fmt.Fprintf(out, "   %s#%d %s from %s: %s\n", marker, item.ID, item.Display, s.name(item.Sender), item.Body)
			}

			if len(state.Ignore) > 0 {
				names := make([]string, 0, len(state.Ignore))
				for _, id := range state.Ignore {
					names = append(names, s.name(id))
				}
				fmt.Fprintf(out, "  ignoring: %s\n", strings.Join(names, ", "))
			}
			if len(state.Groups) > 0 {
				fmt.Fprintf(out, "  groups: %s\n", strings.Join(state.Groups, ", "))
			}
			return nil
		},
	}
}

func newPlayersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "players",
		Short: "Manage the player directory",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known players",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			for _, id := range s.records.IDs() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, s.name(id))
			}
			return nil
		},
	})

	var id string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a player in the directory and create their record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			playerID := uuid.New()
			if id != "" {
				parsed, err := uuid.Parse(id)
				if err != nil {
					return fmt.Errorf("invalid --id: %w", err)
				}
				playerID = parsed
			}

			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.dir.Add(playerID, args[0]); err != nil {
				return err
			}
			// 新玩家按默认布局创建并写入
			if err := s.records.ReloadOne(playerID); err != nil {
				return err
			}
			if err := s.save(playerID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", args[0], playerID)
			return nil
		},
	}
	add.Flags().StringVar(&id, "id", "", "Use this UUID instead of generating one")
	cmd.AddCommand(add)

	return cmd
}

func newLogsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logs <player> <channel>",
		Short: "Print a player's activity log (messages, commands, mail)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := domain.ParseLogChannel(args[1])
			if err != nil {
				return err
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
			lines, err := rec.LogList(ch)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}
