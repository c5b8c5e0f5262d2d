// Package influxdb records gadget lifecycle metrics in InfluxDB 2.x.
//
// Every lifecycle event becomes one point in the gadget_lifecycle
// measurement, tagged with gadget_id and event and carrying status_code
// (0 Available, 1 Decommissioned, 2 Destroyed). Points are batched by the
// official client using batch_size and flush_interval from config.yaml.
//
//	client, err := influxdb.Connect(cfg.InfluxDB,
//	    influxdb.WithErrorHandler(func(err error) { log.Error("influx", "error", err) }))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	lifecycle.SetNotifier(influxdb.NewLifecycleRecorder(client))
//
// Connect and HealthCheck fail synchronously; batch failures only reach
// the error handler.
package influxdb
