package mq

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"nexus-coupon/internal/pkg/logger"
)

// 死信消息携带的消息头
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionFqcn     = "x-exception-fqcn"
	HeaderExceptionMessage  = "x-exception-message"

	DLTSuffix = ".DLT"
)

// DLTTopic 返回某个主题对应的死信主题
func DLTTopic(topic string) string {
	return topic + DLTSuffix
}

// FailureHandler 把处理失败的消息转发到 <topic>.DLT
type FailureHandler struct {
	writer MessageWriter
}

// NewFailureHandler 的 writer 不能绑定固定 Topic，目标主题由消息指定
func NewFailureHandler(writer MessageWriter) *FailureHandler {
	return &FailureHandler{writer: writer}
}

// Handle 把消息写入死信主题，写入失败时返回错误，调用方不应提交 offset
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) error {
	dlt := kafka.Message{
		Topic: DLTTopic(msg.Topic),
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header{}, msg.Headers...),
			kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
			kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: HeaderExceptionFqcn, Value: []byte(fmt.Sprintf("%T", cause))},
			kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
		),
	}
	if err := h.writer.WriteMessages(ctx, dlt); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("topic", msg.Topic).
			Int64("offset", msg.Offset).
			Msg("🚨 failed to publish message to DLT")
		return errors.Wrapf(err, "publish %s offset %d to %s", msg.Topic, msg.Offset, dlt.Topic)
	}
	logger.Ctx(ctx).Warn().Err(cause).
		Str("topic", msg.Topic).
		Str("dlt", dlt.Topic).
		Int64("offset", msg.Offset).
		Msg("message moved to DLT")
	return nil
}
