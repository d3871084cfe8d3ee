// Package mqtt provides the broker connection for Ecolink Core.
//
// It wraps paho.mqtt.golang with subscription tracking (restored
// automatically after reconnects), panic-safe message handlers and a
// credential supplier hook so the rotating portal token is picked up on
// every connection attempt. Topic builders keep the vendor broker's
// wildcard positions in one place.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, brokerURL, clientID, credFn)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	client.Subscribe(topics.DeviceReports(did, class, res, "j"), handler)
package mqtt
