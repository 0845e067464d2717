package http

import (
	"encoding/json"

	"github.com/orgchat/orgchat-server/internal/core"
	"github.com/orgchat/orgchat-server/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.Channel == 0 {
			return nil, payloadError("channel is required"), nil
		}
		return &core.Command{Kind: core.CommandJoinChannel, Channel: join.Channel}, nil, nil

	case proto.InboundTypeLeave:
		var leave proto.JoinData
		if err := json.Unmarshal(inbound.Data, &leave); err != nil {
			return nil, nil, err
		}
		if leave.Channel == 0 {
			return nil, payloadError("channel is required"), nil
		}
		return &core.Command{Kind: core.CommandLeaveChannel, Channel: leave.Channel}, nil, nil

	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if msg.Channel == 0 {
			return nil, payloadError("channel is required"), nil
		}
		return &core.Command{
			Kind:        core.CommandSendMessage,
			Channel:     msg.Channel,
			Body:        msg.Body,
			Attachments: msg.Attachments,
		}, nil, nil

	case proto.InboundTypeEdit:
		var edit proto.EditData
		if err := json.Unmarshal(inbound.Data, &edit); err != nil {
			return nil, nil, err
		}
		if edit.MessageID == 0 {
			return nil, payloadError("message_id is required"), nil
		}
		return &core.Command{
			Kind:      core.CommandEditMessage,
			MessageID: edit.MessageID,
			Body:      edit.Body,
		}, nil, nil

	case proto.InboundTypeDelete:
		var del proto.DeleteData
		if err := json.Unmarshal(inbound.Data, &del); err != nil {
			return nil, nil, err
		}
		if del.MessageID == 0 {
			return nil, payloadError("message_id is required"), nil
		}
		return &core.Command{Kind: core.CommandDeleteMessage, MessageID: del.MessageID}, nil, nil

	case proto.InboundTypeMarkRead:
		var mark proto.MarkReadData
		if err := json.Unmarshal(inbound.Data, &mark); err != nil {
			return nil, nil, err
		}
		if mark.Channel == 0 {
			return nil, payloadError("channel is required"), nil
		}
		return &core.Command{
			Kind:       core.CommandMarkRead,
			Channel:    mark.Channel,
			MessageIDs: mark.MessageIDs,
		}, nil, nil

	case proto.InboundTypeFetch:
		var fetch proto.FetchData
		if err := json.Unmarshal(inbound.Data, &fetch); err != nil {
			return nil, nil, err
		}
		if fetch.Channel == 0 {
			return nil, payloadError("channel is required"), nil
		}
		return &core.Command{
			Kind:    core.CommandFetchMessages,
			Channel: fetch.Channel,
			Before:  fetch.Before,
			Limit:   fetch.Limit,
		}, nil, nil

	case proto.InboundTypeSubNotifications:
		return &core.Command{Kind: core.CommandSubscribeNotifications}, nil, nil

	case proto.InboundTypeNotificationRead:
		var read proto.NotificationReadData
		if err := json.Unmarshal(inbound.Data, &read); err != nil {
			return nil, nil, err
		}
		if read.NotificationID == 0 {
			return nil, payloadError("notification_id is required"), nil
		}
		return &core.Command{Kind: core.CommandMarkNotificationRead, Notification: read.NotificationID}, nil, nil

	case proto.InboundTypeNotify:
		var notify proto.NotifyData
		if err := json.Unmarshal(inbound.Data, &notify); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:      core.CommandCreateNotification,
			Recipient: notify.Recipient,
			Title:     notify.Title,
			Body:      notify.Message,
			NotifType: notify.Type,
			Metadata:  notify.Metadata,
		}, nil, nil

	case proto.InboundTypeAdminKick:
		var kick proto.AdminKickData
		if err := json.Unmarshal(inbound.Data, &kick); err != nil {
			return nil, nil, err
		}
		if kick.UserID == 0 {
			return nil, payloadError("user_id is required"), nil
		}
		return &core.Command{Kind: core.CommandForceDisconnect, TargetUser: kick.UserID}, nil, nil

	case proto.InboundTypeAdminStats:
		return &core.Command{Kind: core.CommandStats}, nil, nil

	default:
		return nil, payloadError("unknown message type"), nil
	}
}

func payloadError(msg string) *proto.Error {
	return &proto.Error{Code: string(core.CodeInvalidPayload), Msg: msg}
}

func messageData(m *core.MessageView) proto.MessageData {
	data := proto.MessageData{
		ID:          m.ID,
		Channel:     m.ChannelID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		Body:        m.Body,
		Attachments: m.Attachments,
		ReadBy:      m.ReadBy,
		TS:          m.CreatedAt.Unix(),
	}
	if m.EditedAt != nil {
		data.EditedAt = m.EditedAt.Unix()
	}
	return data
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventConnectionEstablished:
		return eventOutbound(proto.EventConnectionEstablished, proto.PresenceData{
			Org:    event.Org,
			UserID: event.User,
			Name:   event.Name,
			TS:     event.At.Unix(),
		})

	case core.EventUserOnline:
		return eventOutbound(proto.EventUserOnline, proto.PresenceData{
			Org:    event.Org,
			UserID: event.User,
			Name:   event.Name,
			TS:     event.At.Unix(),
		})

	case core.EventUserOffline:
		return eventOutbound(proto.EventUserOffline, proto.PresenceData{
			Org:    event.Org,
			UserID: event.User,
			Name:   event.Name,
			TS:     event.At.Unix(),
		})

	case core.EventUserJoinedChannel:
		return eventOutbound(proto.EventUserJoinedChannel, proto.PresenceData{
			Channel: event.Channel,
			UserID:  event.User,
			Name:    event.Name,
			TS:      event.At.Unix(),
		})

	case core.EventUserLeftChannel:
		return eventOutbound(proto.EventUserLeftChannel, proto.PresenceData{
			Channel: event.Channel,
			UserID:  event.User,
			Name:    event.Name,
			TS:      event.At.Unix(),
		})

	case core.EventChannelUsers:
		return eventOutbound(proto.EventChannelUsers, proto.ChannelUsersData{
			Channel: event.Channel,
			Users:   event.Users,
		})

	case core.EventNewMessage:
		return eventOutbound(proto.EventNewMessage, messageData(event.Message))

	case core.EventMessageEdited:
		return eventOutbound(proto.EventMessageEdited, messageData(event.Message))

	case core.EventMessageDeleted:
		var id int64
		if len(event.MessageIDs) > 0 {
			id = event.MessageIDs[0]
		}
		return eventOutbound(proto.EventMessageDeleted, proto.MessageDeletedData{
			Channel:   event.Channel,
			MessageID: id,
		})

	case core.EventReadReceipt:
		return eventOutbound(proto.EventReadReceipt, proto.ReadReceiptData{
			Channel:    event.Channel,
			UserID:     event.User,
			MessageIDs: event.MessageIDs,
		})

	case core.EventMessageHistory:
		messages := make([]proto.MessageData, 0, len(event.Messages))
		for _, m := range event.Messages {
			messages = append(messages, messageData(m))
		}
		return eventOutbound(proto.EventMessageHistory, proto.HistoryData{
			Channel:  event.Channel,
			Messages: messages,
		})

	case core.EventChannelActivity:
		return eventOutbound(proto.EventChannelActivity, proto.ActivityData{
			Channel:  event.Channel,
			SenderID: event.User,
			Preview:  event.Preview,
			TS:       event.At.Unix(),
		})

	case core.EventNewNotification:
		if event.Notification != nil {
			return eventOutbound(proto.EventNewNotification, singleNotification(event))
		}
		list := make([]proto.NotificationData, 0, len(event.Notifications))
		for _, n := range event.Notifications {
			list = append(list, proto.NotificationData{
				ID:        n.ID,
				Title:     n.Title,
				Message:   n.Message,
				Type:      n.Type,
				Metadata:  n.Metadata,
				IsRead:    n.IsRead,
				CreatedAt: n.CreatedAt.Unix(),
			})
		}
		return eventOutbound(proto.EventNewNotification, proto.NotificationListData{Notifications: list})

	case core.EventNotificationRead:
		return eventOutbound(proto.EventNotificationRead, singleNotification(event))

	case core.EventForceLogout:
		return eventOutbound(proto.EventForceLogout, proto.ForceLogoutData{Reason: event.Reason})

	case core.EventSystemStats:
		return eventOutbound(proto.EventSystemStats, proto.StatsData{
			TotalConnections: event.Stats.TotalConnections,
			OnlineUsers:      event.Stats.OnlineUsers,
			ActiveChannels:   event.Stats.ActiveChannels,
		})

	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: string(core.CodeServerError), Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: string(event.Error.Code), Msg: event.Error.Message},
		}

	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func singleNotification(event *core.Event) proto.NotificationData {
	n := event.Notification
	return proto.NotificationData{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Metadata:  n.Metadata,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.Unix(),
	}
}

func eventOutbound(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}
