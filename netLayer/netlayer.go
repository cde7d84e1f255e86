/*
Package netLayer contains definitions in network layer AND transport layer.

本包有 地址, 拨号, udp中继, DoH, failover 候选路径, 出站拒绝列表 等相关功能。

以后如果要 控制tcp/udp拨号的细节时，也要在此包里实现.
*/
package netLayer
