package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// applyEnv overlays environment variables on cfg. Sections are walked
// recursively and each leaf is read from the variable named by its env tag.
// Untagged leaves and fields tagged "-" keep their value.
func applyEnv(cfg *Config) error {
	return overlayEnv(reflect.ValueOf(cfg).Elem())
}

func overlayEnv(section reflect.Value) error {
	for i := 0; i < section.NumField(); i++ {
		field := section.Field(i)
		key := section.Type().Field(i).Tag.Get("env")

		switch {
		case key == "-" || !field.CanSet():
			continue
		case field.Kind() == reflect.Struct:
			if err := overlayEnv(field); err != nil {
				return err
			}
			continue
		case key == "":
			continue
		}

		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := setField(field, strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("config: %s=%q: %w", key, raw, err)
		}
	}
	return nil
}

// setField covers the kinds Config uses: strings, flags and small counts.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(n))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
