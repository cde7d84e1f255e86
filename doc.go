/*
Package ws_tunnel is a websocket tunnel relay that speaks three inner proxy protocols.

# Structure 本项目结构

utils -> netLayer -> advLayer/ws -> proxy -> ws_tunnel -> machine -> cmd/wstunnel

根项目 ws_tunnel 仅研究实际转发过程. 关于 各协议头部的 详细定义 请参考 proxy 子包的文档。

# Chain

具体 转发过程 的 调用链 是 Server.Serve -> handleNewIncomeConnection -> Session.Run ->
handleChunk -> { handleFirstChunk -> [ connectLocked -> pump -> ( failoverLocked ) ] 或 startUDP } ,
之后的每一条消息 都直接交给 writeToDestination 或 udpBridge.

一个 websocket 连接 对应一个 Session. 第一条消息 (可能来自 earlydata) 用于 嗅探协议 和 解析头部,
头部只解析一次; 在目标连接建立之前 不会转发任何数据.

# Failover

目标连接 在我们收到任何数据之前 就被正常关闭, 或者拨号失败时, 会用 ws 握手 path 中给出的 候选地址 重试一次,
重试时 重新发送 已经发给原目标的 全部数据. 第二次失败 就直接结束会话.

# UDP

udp 只通过 tcp 中继 (relay) 或 DoH 承载, 由 配置的 profile 决定.
*/
package ws_tunnel
