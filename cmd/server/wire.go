// cmd/server/wire.go
//
// 依設定組裝應用：儲存後端、稅務登記 client、郵件通知器、帳戶集合與 HTTP 伺服器。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"bankapi/internal/bank"
	"bankapi/internal/config"
	"bankapi/internal/logger"
	"bankapi/internal/notify"
	"bankapi/internal/server"
	"bankapi/internal/storage"
	"bankapi/internal/taxregistry"
)

// App 為組裝完成的應用。
type App struct {
	Server  *server.Server
	Handler http.Handler
	Store   storage.Store
}

// InitializeApp 建立所有元件；回傳的 cleanup 會關閉儲存後端連線。
func InitializeApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, func(), error) {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warnf(context.Background(), "close store: %v", err)
		}
	}

	reg := bank.NewRegistry()

	var persist func() error
	if cfg.Storage.Autosave {
		// 由 server 在持有鎖時呼叫，可直接讀取 reg
		persist = func() error {
			return store.SaveAll(context.Background(), bank.ToRecords(reg.All()))
		}
	}

	var mailer bank.Notifier = notify.Disabled{}
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTP(notify.Options{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, log)
	} else {
		log.Infof(ctx, "smtp.host not set, history emails disabled")
	}

	srv := server.NewServer(reg, persist, server.Deps{
		Store:  store,
		Taxes:  taxregistry.New(cfg.TaxRegistry.BaseURL, cfg.TaxRegistry.Timeout, log),
		Mailer: mailer,
		Log:    log,
	})

	if cfg.Storage.LoadOnStart {
		n, err := srv.LoadAll(ctx)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("load accounts on start: %w", err)
		}
		log.Infof(ctx, "loaded %d accounts from %s backend", n, cfg.Storage.Backend)
	}

	return &App{Server: srv, Handler: srv.Router(), Store: store}, cleanup, nil
}

// openStore 依 storage.backend 建立對應的儲存後端。
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case storage.BackendJSON:
		return storage.NewJSONStore(cfg.Storage.JSONFile), nil

	case storage.BackendDynamoDB:
		return openDynamoStore(ctx, cfg.DynamoDB, log)

	case storage.BackendRedis:
		return storage.OpenRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)

	case storage.BackendMySQL:
		return storage.OpenSQLStore(cfg.MySQL.DSN)

	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownBackend, cfg.Storage.Backend)
	}
}

func openDynamoStore(ctx context.Context, cfg config.DynamoDBConfig, log logger.Logger) (storage.Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	if cfg.CreateTable {
		err := storage.CreateAccountsTable(ctx, client, cfg.Table)
		var inUse *types.ResourceInUseException
		switch {
		case err == nil:
			log.Infof(ctx, "dynamodb table %s created", cfg.Table)
		case errors.As(err, &inUse):
			log.Debugf(ctx, "dynamodb table %s already exists", cfg.Table)
		default:
			return nil, fmt.Errorf("create dynamodb table: %w", err)
		}
	}
	return storage.NewDynamoStore(client, cfg.Table), nil
}
