package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cfchat/backend/internal/config"
	"cfchat/backend/internal/directory"
	"cfchat/backend/internal/domain"
	"cfchat/backend/internal/logger"
	"cfchat/backend/internal/record"
	"cfchat/backend/internal/storage"
	"cfchat/backend/internal/storage/backends"
)

// app 命令共享的状态，在 PersistentPreRunE 中初始化
type app struct {
	driver  string
	verbose bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "recordctl",
		Short:         "Inspect and moderate stored player records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.driver, "driver", "d", "",
		"Storage driver override (filesystem, bolt, redis, postgres, mysql, pgx, memory)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false,
		"Log at the configured level instead of warnings only")

	root.AddCommand(
		newShowCmd(a),
		newPlayersCmd(a),
		newWarnCmd(a),
		newWarningsCmd(a),
		newMuteCmd(a),
		newUnmuteCmd(a),
		newMailCmd(a),
		newLogsCmd(a),
		newCheckCmd(a),
		newMigrateCmd(a),
		newTokenCmd(a),
		newOperatorCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !a.verbose {
		cfg.Log.Level = "warn"
	}
	// 命令行工具不写日志文件
	cfg.Log.File = ""
	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.cfg = cfg
	a.log = log
	return nil
}

// session 一次命令使用的存储与记录缓存
type session struct {
	sections storage.SectionStore
	dir      *directory.File
	records  *record.Store
}

func (a *app) openSections(driver string) (storage.SectionStore, error) {
	if driver == "" {
		driver = a.driver
	}
	return backends.Open(a.cfg, driver, a.log)
}

// open 打开存储并加载全部玩家
func (a *app) open() (*session, error) {
	sections, err := a.openSections("")
	if err != nil {
		return nil, err
	}
	dir := directory.NewFile(a.cfg.Directory.File, a.cfg.Directory.NameTTL, a.log)
	records := record.NewStore(sections, dir,
		record.WithLogger(a.log),
		record.WithSaveConcurrency(a.cfg.Records.SaveConcurrency),
	)
	if _, err := records.ReloadAll(); err != nil {
		dir.Close()
		_ = sections.Close()
		return nil, err
	}
	return &session{sections: sections, dir: dir, records: records}, nil
}

func (s *session) Close() {
	s.dir.Close()
	_ = s.sections.Close()
}

// player 按名称或 UUID 查找玩家
func (s *session) player(nameOrToken string) (*domain.PlayerRecord, error) {
	return s.records.Lookup(nameOrToken)
}

// save 只写回被修改的玩家
func (s *session) save(id uuid.UUID) error {
	if err := s.records.SaveOne(id); err != nil {
		return fmt.Errorf("save %s: %w", s.name(id), err)
	}
	return nil
}

func (s *session) name(id uuid.UUID) string {
	if domain.IsConsole(id) {
		return "Console"
	}
	return s.dir.DisplayName(id)
}
