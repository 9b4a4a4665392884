// Command admin provisions an owner: the account, optionally its QR code,
// and optionally the geofence that code is restricted to.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/hibiken/asynq"

	"qrintake/internal/database"
	"qrintake/internal/tasks"
)

func main() {
	var (
		username  = flag.String("username", "", "owner username (required)")
		withCode  = flag.Bool("with-code", false, "also create the owner's QR code")
		code      = flag.String("code", "", "QR code value; generated when empty (implies -with-code)")
		baseURL   = flag.String("base-url", os.Getenv("PUBLIC_BASE_URL"), "public origin printed into the QR code")
		fence     = flag.String("geofence", "", `restrict the code to "lat,lon,radiusMeters"`)
		redisAddr = flag.String("redis-addr", "", "queue the QR image render through this redis (default REDIS_HOST:REDIS_PORT)")
		db        dbFlags
	)
	flag.StringVar(&db.host, "db-host", "", "database host (default DATABASE_HOST)")
	flag.IntVar(&db.port, "db-port", 0, "database port (default DATABASE_PORT)")
	flag.StringVar(&db.name, "db-name", "", "database name (default POSTGRES_DB)")
	flag.StringVar(&db.user, "db-user", "", "database user (default POSTGRES_USER)")
	flag.StringVar(&db.password, "db-password", "", "database password (default POSTGRES_PASSWORD)")
	flag.StringVar(&db.sslMode, "db-sslmode", "", "database sslmode (default DATABASE_SSLMODE)")
	flag.Parse()

	req := provisionRequest{
		Username: strings.TrimSpace(*username),
		Code:     strings.TrimSpace(*code),
		WithCode: *withCode || strings.TrimSpace(*code) != "",
		BaseURL:  *baseURL,
	}
	if req.Username == "" {
		log.Fatal("missing required flag: -username")
	}
	if *fence != "" {
		loc, err := parseGeofence(*fence)
		if err != nil {
			log.Fatalf("parse -geofence: %v", err)
		}
		req.Fence = &loc
	}

	dbCfg, err := db.config()
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}
	conn, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(conn); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	ctx := context.Background()
	result, err := provision(ctx, conn, req)
	if err != nil {
		log.Fatalf("provision owner: %v", err)
	}

	if result.QrCode != nil {
		addr := *redisAddr
		if addr == "" {
			addr = redisAddrFromEnv()
		}
		result.RenderQueued = queueRender(ctx, addr, result.QrCode.ID)
	}

	if err := writeSummary(os.Stdout, result); err != nil {
		log.Fatalf("write summary: %v", err)
	}
}

// queueRender asks the worker to draw the PNG; the code works without it.
func queueRender(ctx context.Context, addr string, qrCodeID uint) bool {
	if addr == "" {
		return false
	}
	task, err := tasks.NewQRRenderTask(qrCodeID, "admin")
	if err != nil {
		log.Printf("build render task: %v", err)
		return false
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: addr})
	defer client.Close()
	if _, err := client.EnqueueContext(ctx, task); err != nil {
		log.Printf("queue render task: %v", err)
		return false
	}
	return true
}
