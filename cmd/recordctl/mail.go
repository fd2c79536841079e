package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cfchat/backend/internal/service"
)

func newMailCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Send, list and manage player mail",
	}

	issuer := &issuerFlag{}
	send := &cobra.Command{
		Use:   "send <player> <body...>",
		Short: "Deliver a mail to a player",
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
			mail := service.NewMailService(s.records, a.cfg.Mail, a.log)
			defer mail.Close()

			item, err := mail.Send(from, rec.ID(), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if err := s.save(rec.ID()); err != nil {
				return err
			}
			// 发送方的邮件日志也发生了变化
			if from != rec.ID() {
				if _, err := s.records.Get(from); err == nil {
					if err := s.save(from); err != nil {
						return err
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "delivered mail #%d to %s\n", item.ID, s.name(rec.ID()))
			return nil
		},
	}
	issuer.register(send)

	var unreadOnly bool
	list := &cobra.Command{
		Use:   "list <player>",
		Short: "List a player's mail",
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
			mail := service.NewMailService(s.records, a.cfg.Mail, a.log)
			defer mail.Close()

			fetch := mail.List
			if unreadOnly {
				fetch = mail.Unread
			}
			items, err := fetch(rec.ID())
			if err != nil {
				return err
			}
			for _, item := range items {
				marker := " "
				if item.Unread {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s#%d %s from %s: %s\n", marker, item.ID, item.Display, s.name(item.Sender), item.Body)
			}
			return nil
		},
	}
	list.Flags().BoolVar(&unreadOnly, "unread", false, "Only show unread mail")

	read := &cobra.Command{
		Use:   "read <player> <id>",
		Short: "Mark a mail as read",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMail(args, func(s *session, mail *service.MailService, rec string, id int) error {
				player, err := s.player(rec)
				if err != nil {
					return err
				}
				item, err := mail.Read(player.ID(), id)
				if err != nil {
					return err
				}
				if err := s.save(player.ID()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "#%d from %s: %s\n", item.ID, s.name(item.Sender), item.Body)
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "delete <player> <id>",
		Short: "Delete a mail",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMail(args, func(s *session, mail *service.MailService, rec string, id int) error {
				player, err := s.player(rec)
				if err != nil {
					return err
				}
				if err := mail.Delete(player.ID(), id); err != nil {
					return err
				}
				if err := s.save(player.ID()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted mail #%d from %s\n", id, s.name(player.ID()))
				return nil
			})
		},
	}

	cmd.AddCommand(send, list, read, remove)
	return cmd
}

// withMail 解析 "<player> <id>" 参数并打开会话
func (a *app) withMail(args []string, fn func(s *session, mail *service.MailService, player string, id int) error) error {
	id, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid mail id: %w", err)
	}
	s, err := a.open()
	if err != nil {
		return err
	}
	defer s.Close()

	mail := service.NewMailService(s.records, a.cfg.Mail, a.log)
	defer mail.Close()
	return fn(s, mail, args[0], id)
}
