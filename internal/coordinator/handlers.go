package coordinator

import (
	"context"
	"encoding/json"

	"github.com/SocketCluster/agc-state/internal/transport"
	"github.com/SocketCluster/agc-state/pkg/protocol"
)

// RegisterHandlers 将协调器挂载到传输服务器
//
// 注册握手拦截器、四个集群过程与断开回调。必须在传输
// 服务器启动前调用。
func RegisterHandlers(server *transport.Server, c *Coordinator) {
	server.AddInterceptor(func(info *transport.HandshakeInfo) *protocol.Error {
		return c.CheckHandshake(
			info.QueryValue(protocol.QueryAuthKey),
			info.QueryValue(protocol.QueryVersion),
			info.QueryValue(protocol.QueryInstanceType))
	})

	server.OnHandshakeRejected(c.RecordRejection)

	server.OnConnection(func(conn *transport.Conn) {
		c.HandleConnect(conn)
	})

	server.RegisterProcedure(protocol.ProcBrokerJoin,
		func(_ context.Context, conn *transport.Conn, data json.RawMessage) (any, error) {
			payload, err := decodeJoinPayload(data)
			if err != nil {
				return nil, err
			}
			c.BrokerJoin(conn, payload)
			return nil, nil
		})

	server.RegisterProcedure(protocol.ProcBrokerLeave,
		func(_ context.Context, conn *transport.Conn, _ json.RawMessage) (any, error) {
			c.BrokerLeave(conn)
			return nil, nil
		})

	server.RegisterProcedure(protocol.ProcWorkerJoin,
		func(_ context.Context, conn *transport.Conn, data json.RawMessage) (any, error) {
			payload, err := decodeJoinPayload(data)
			if err != nil {
				return nil, err
			}
			return c.WorkerJoin(conn, payload)
		})

	server.RegisterProcedure(protocol.ProcWorkerLeave,
		func(_ context.Context, conn *transport.Conn, _ json.RawMessage) (any, error) {
			c.WorkerLeave(conn)
			return nil, nil
		})

	server.OnDisconnect(func(conn *transport.Conn) {
		c.HandleDisconnect(conn)
	})
}

// decodeJoinPayload 解析加入载荷
//
// 空载荷等价于零值；不做字段校验，畸形值原样记录并透出。
func decodeJoinPayload(data json.RawMessage) (protocol.JoinPayload, error) {
	var payload protocol.JoinPayload
	if len(data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, protocol.NewError(protocol.ErrNameBadRequest, "Malformed join payload")
	}
	return payload, nil
}
