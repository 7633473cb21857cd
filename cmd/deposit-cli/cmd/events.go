package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"deposit-core/internal/service/mq"
	"deposit-core/internal/service/webhook"
	"deposit-core/pkg/database"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "入账事件工具",
}

// eventsTailCmd 订阅 outbox 投递的入账事件并打印
var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "订阅并打印入账事件 (Kafka 或 Redis Streams)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		group, _ := cmd.Flags().GetString("group")
		topic, _ := cmd.Flags().GetString("topic")
		if topic == "" {
			topic = cfg.Kafka.Topic
		}
		if topic == "" {
			topic = webhook.TopicApplied
		}

		var consumer mq.Consumer
		if cfg.Redis.MQType == "kafka" {
			consumer = mq.NewKafkaConsumer(cfg.Kafka.Brokers, group)
		} else {
			rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return err
			}
			defer rdb.Close()
			host, _ := os.Hostname()
			consumer = mq.NewRedisConsumer(rdb, group, "cli-"+host)
		}
		defer consumer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		err := consumer.Subscribe(ctx, topic, func(msg *mq.Message) error {
			fmt.Fprintf(out, "%s key=%s %s\n", msg.ID, msg.Key, msg.Payload)
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)

	eventsTailCmd.Flags().String("group", "deposit-cli", "consumer group")
	eventsTailCmd.Flags().String("topic", "", "topic / stream, 默认 kafka.topic")
}
