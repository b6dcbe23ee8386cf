package send

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkauth "github.com/larksuite/oapi-sdk-go/v3/service/auth/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/sirupsen/logrus"
)

type Message struct {
	MsgType   string  `json:"msg_type"`
	Content   Content `json:"content"`
	Timestamp int64   `json:"timestamp,omitempty"`
	Sign      string  `json:"sign,omitempty"`
}

type Content struct {
	Text string `json:"text"`
}

type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Webhook posts a text summary to a Lark custom bot. The message is signed
// when secret is set.
func Webhook(ctx context.Context, webhookURL, secret, text, scheduleName string) error {
	logrus.Infof("[%s] Start webhook send...", scheduleName)

	message := Message{
		MsgType: "text",
		Content: Content{Text: text},
	}
	if secret != "" {
		timestamp := time.Now().Unix()
		sign, err := GenSign(secret, timestamp)
		if err != nil {
			return fmt.Errorf("failed to get sign: %w", err)
		}
		message.Timestamp = timestamp
		message.Sign = sign
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(messageBytes))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send message, status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read resp body: %w", err)
	}

	response := &Response{}
	if err = json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("failed to unmarshal resp body: %w", err)
	}

	if response.Code != 0 {
		return fmt.Errorf("failed to send message, code: %d msg: %s", response.Code, response.Msg)
	}

	logrus.Infof("[%s] Webhook message sent", scheduleName)
	return nil
}

func GenSign(secret string, timestamp int64) (string, error) {
	stringToSign := fmt.Sprintf("%v", timestamp) + "\n" + secret

	var data []byte
	h := hmac.New(sha256.New, []byte(stringToSign))
	_, err := h.Write(data)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// Notify uploads the report file through a Lark app and posts the message and
// the file to every chat the app is a member of.
func Notify(ctx context.Context, appID, appSecret, filePath, message, scheduleName string) error {
	logrus.Infof("[%s] Start notify send...", scheduleName)
	client := lark.NewClient(appID, appSecret, lark.WithEnableTokenCache(false))

	getTokenReq := larkauth.NewInternalAppAccessTokenReqBuilder().
		Body(larkauth.NewInternalAppAccessTokenReqBodyBuilder().
			AppId(appID).
			AppSecret(appSecret).
			Build()).
		Build()

	getTokenResp, err := client.Auth.AppAccessToken.Internal(ctx, getTokenReq)
	if err != nil {
		return fmt.Errorf("failed to get token in Lark: %w", err)
	}
	if !getTokenResp.Success() {
		return fmt.Errorf("server error get token: Code=%d, Msg=%s, RequestID=%s", getTokenResp.Code, getTokenResp.Msg, getTokenResp.RequestId())
	}

	appAccessTokenResp := larkcore.AppAccessTokenResp{}
	if err = json.Unmarshal(getTokenResp.RawBody, &appAccessTokenResp); err != nil {
		return fmt.Errorf("failed to unmarshal token body: %w", err)
	}

	requestOptionFunc := larkcore.WithHeaders(http.Header{
		"Authorization": []string{fmt.Sprintf("Bearer %s", appAccessTokenResp.AppAccessToken)},
	})

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logrus.Warnf("[%s] Error closing file %s: %v", scheduleName, filePath, err)
		}
	}()

	createFileReq := larkim.NewCreateFileReqBuilder().
		Body(larkim.NewCreateFileReqBodyBuilder().
			FileType(`pdf`).
			FileName(filepath.Base(filePath)).
			File(file).
			Build()).
		Build()

	createFileResp, err := client.Im.File.Create(ctx, createFileReq, requestOptionFunc)
	if err != nil {
		return fmt.Errorf("failed to create file in Lark: %w", err)
	}
	if !createFileResp.Success() {
		return fmt.Errorf("server error creating file: Code=%d, Msg=%s, RequestID=%s", createFileResp.Code, createFileResp.Msg, createFileResp.RequestId())
	}

	logrus.Debugf("[%s] File uploaded: %s", scheduleName, larkcore.Prettify(createFileResp))

	listChatReq := larkim.NewListChatReqBuilder().
		SortType(`ByCreateTimeAsc`).
		PageSize(20).
		Build()

	listChatResp, err := client.Im.Chat.List(ctx, listChatReq, requestOptionFunc)
	if err != nil {
		return fmt.Errorf("failed to list chats in Lark: %w", err)
	}
	if !listChatResp.Success() {
		return fmt.Errorf("server error listing chats: Code=%d, Msg=%s, RequestID=%s", listChatResp.Code, listChatResp.Msg, listChatResp.RequestId())
	}

	data, err := json.Marshal(Content{Text: message})
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	for _, chat := range listChatResp.Data.Items {
		if err = sendChatMessage(ctx, client, *chat.ChatId, `text`, string(data), requestOptionFunc); err != nil {
			return err
		}
		fileContent := "{\"file_key\":\"" + *createFileResp.Data.FileKey + "\"}"
		if err = sendChatMessage(ctx, client, *chat.ChatId, `file`, fileContent, requestOptionFunc); err != nil {
			return err
		}
		logrus.Infof("[%s] Report sent to chat %s", scheduleName, *chat.ChatId)
	}

	return nil
}

func sendChatMessage(ctx context.Context, client *lark.Client, chatID, msgType, content string, opt larkcore.RequestOptionFunc) error {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(`chat_id`).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := client.Im.Message.Create(ctx, req, opt)
	if err != nil {
		return fmt.Errorf("failed to send %s message to chat %s: %w", msgType, chatID, err)
	}
	if !resp.Success() {
		return fmt.Errorf("server error sending %s message: Code=%d, Msg=%s, RequestID=%s", msgType, resp.Code, resp.Msg, resp.RequestId())
	}
	return nil
}
