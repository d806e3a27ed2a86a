// Package export writes imported point samples to canonical CSV and
// Parquet tables for offline inspection. Missing measurements are NaN in
// Parquet and empty cells in CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"tricoach/importer"
)

type sampleParquetRow struct {
	TSUTCISO   string  `parquet:"name=ts_utc_iso, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ElapsedS   float64 `parquet:"name=elapsed_s, type=DOUBLE"`
	Lat        float64 `parquet:"name=lat, type=DOUBLE"`
	Lon        float64 `parquet:"name=lon, type=DOUBLE"`
	AltitudeM  float64 `parquet:"name=altitude_m, type=DOUBLE"`
	HRBPM      float64 `parquet:"name=hr_bpm, type=DOUBLE"`
	SpeedMPS   float64 `parquet:"name=speed_mps, type=DOUBLE"`
	PowerW     float64 `parquet:"name=power_w, type=DOUBLE"`
	DistanceM  float64 `parquet:"name=distance_m, type=DOUBLE"`
	PointIndex int64   `parquet:"name=point_index, type=INT64"`
}

// WriteSamplesCSV writes the canonical sample table to w.
func WriteSamplesCSV(w io.Writer, samples []importer.PointSample) error {
	cw := csv.NewWriter(w)
	header := []string{
		"ts_utc_iso", "elapsed_s", "lat", "lon", "altitude_m",
		"hr_bpm", "speed_mps", "power_w", "distance_m", "point_index",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			s.TSUTCISO,
			formatFloat(s.ElapsedS),
			formatFloatPtr(s.Lat),
			formatFloatPtr(s.Lon),
			formatFloatPtr(s.AltitudeM),
			formatFloatPtr(s.HRBPM),
			formatFloatPtr(s.SpeedMPS),
			formatFloatPtr(s.PowerW),
			formatFloatPtr(s.DistanceM),
			strconv.Itoa(s.Index),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSamplesCSVFile writes the canonical sample table to path.
func WriteSamplesCSVFile(path string, samples []importer.PointSample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()
	return WriteSamplesCSV(f, samples)
}

// MarshalSamplesParquet renders the sample table as Parquet bytes.
func MarshalSamplesParquet(samples []importer.PointSample) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	if err := writeParquet(fw, samples); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

// WriteSamplesParquetFile writes the sample table to path.
func WriteSamplesParquetFile(path string, samples []importer.PointSample) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}
	if err := writeParquet(fw, samples); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func writeParquet(fw source.ParquetFile, samples []importer.PointSample) error {
	pw, err := writer.NewParquetWriter(fw, new(sampleParquetRow), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, s := range samples {
		row := sampleParquetRow{
			TSUTCISO:   s.TSUTCISO,
			ElapsedS:   s.ElapsedS,
			Lat:        valueOrNaN(s.Lat),
			Lon:        valueOrNaN(s.Lon),
			AltitudeM:  valueOrNaN(s.AltitudeM),
			HRBPM:      valueOrNaN(s.HRBPM),
			SpeedMPS:   valueOrNaN(s.SpeedMPS),
			PowerW:     valueOrNaN(s.PowerW),
			DistanceM:  valueOrNaN(s.DistanceM),
			PointIndex: int64(s.Index),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}
	return pw.WriteStop()
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
