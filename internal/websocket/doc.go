// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

/*
Package websocket is the broadcast channel for live dashboards.

It uses gorilla/websocket with a hub-client architecture. The Hub owns the
client set and runs as a supervised service; each Client has a read and a
write goroutine.

Topics:

Clients opt in to event broadcasts by subscribing to a topic. The only
topic is "updates", which carries new-event messages for every new or
revised event:

	{"type":"subscribe","data":"updates"}
	{"type":"unsubscribe","data":"updates"}

The subscribe-earthquakes and unsubscribe-earthquakes messages are
accepted as aliases for the updates topic.

Server messages:

  - connection: greeting sent once on connect
  - server-status: {connected, lastUpdate}, sent on connect and after each fetch cycle
  - new-event: a new or revised seismic event (topic "updates")
  - subscribed / unsubscribed: acknowledgements
  - error: rejected control message
  - pong: reply to {"type":"ping"}

Usage:

	hub := websocket.NewHub()
	tree.AddAPIService(hub)

	// in the /ws handler, after upgrading
	client := websocket.NewClient(hub, conn)
	hub.Register <- client
	client.Start()

	// from the alert dispatcher
	hub.Publish(websocket.TopicUpdates, websocket.MessageTypeNewEvent, ev)

Delivery:

Broadcasts are queued (256 deep) and delivered by the hub goroutine in
client id order. A client whose 256-message send buffer is full is
disconnected. A full broadcast queue drops the message and counts it in
the broadcasts-dropped metric; broadcast loss is never an error.

Timeouts:

  - writeWait: 10 seconds
  - pongWait: 60 seconds
  - pingPeriod: 54 seconds
  - maxMessageSize: 4 KB inbound
*/
package websocket
